package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type userRow struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`               // student|staff|admin
	Password    string `json:"password,omitempty"` // plaintext in, bcrypt stored
}

// POST /users/bulk  — provisioning endpoint for the account system.
func BulkUpsertUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rows []userRow
		if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
			http.Error(w, "expected JSON array", http.StatusBadRequest)
			return
		}
		n, err := upsertUsers(r.Context(), db, rows)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"upserted": n})
	}
}

func upsertUsers(ctx context.Context, db *sql.DB, rows []userRow) (int, error) {
	n := 0
	for _, u := range rows {
		if u.Username == "" {
			continue
		}
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		if u.Role == "" {
			u.Role = "student"
		}
		if u.DisplayName == "" {
			u.DisplayName = u.Username
		}
		var hash []byte
		if u.Password != "" {
			var err error
			hash, err = bcrypt.GenerateFromPassword([]byte(u.Password), 12)
			if err != nil {
				return n, err
			}
		}
		_, err := db.ExecContext(ctx, `INSERT INTO users (id,username,display_name,role,password_hash)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (username) DO UPDATE SET
				display_name=EXCLUDED.display_name,
				role=EXCLUDED.role,
				password_hash=CASE WHEN EXCLUDED.password_hash <> '' THEN EXCLUDED.password_hash
					ELSE users.password_hash END`,
			u.ID, u.Username, u.DisplayName, u.Role, string(hash))
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// GET /users?role=
func ListUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := r.URL.Query().Get("role")
		var rows *sql.Rows
		var err error
		if role == "" {
			rows, err = db.QueryContext(r.Context(),
				`SELECT id,username,display_name,role FROM users ORDER BY username`)
		} else {
			rows, err = db.QueryContext(r.Context(),
				`SELECT id,username,display_name,role FROM users WHERE role=$1 ORDER BY username`, role)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		defer rows.Close()
		out := []userRow{}
		for rows.Next() {
			var u userRow
			if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Role); err != nil {
				writeError(w, err)
				return
			}
			out = append(out, u)
		}
		writeJSON(w, http.StatusOK, out)
	}
}
