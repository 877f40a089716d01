package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/nebulium/authcore/structs"
)

type roleRepository struct {
	db *sql.DB
}

func (r *roleRepository) Upsert(ctx context.Context, role *structs.Role) error {
	permissions, err := json.Marshal(role.Permissions)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO roles (name, description, permissions)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET description = $2, permissions = $3
	`, role.Name, role.Description, string(permissions))
	return err
}

func (r *roleRepository) Grant(ctx context.Context, userID, roleName string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role_name)
		VALUES ($1, $2)
		ON CONFLICT (user_id, role_name) DO NOTHING
	`, userID, roleName)
	return err
}

func (r *roleRepository) ListByUser(ctx context.Context, userID string) ([]*structs.Role, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.name, r.description, r.permissions
		FROM roles r
		JOIN user_roles ur ON ur.role_name = r.name
		WHERE ur.user_id = $1
		ORDER BY r.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*structs.Role
	for rows.Next() {
		role := &structs.Role{}
		var permissions string
		if err := rows.Scan(&role.Name, &role.Description, &permissions); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(permissions), &role.Permissions); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
