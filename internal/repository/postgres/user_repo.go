package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/fitgrid/auth-service/internal/domain"
)

type UserRepo struct {
	DB *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db}
}

const userSelectFields = `id, email, COALESCE(name, '') as name, password_hash, role, gym_id, active, last_login_at, created_at`

// scanUser is a helper that scans a row into a User struct
func scanUser(row interface{ Scan(dest ...any) error }) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Role,
		&user.GymID,
		&user.Active,
		&user.LastLoginAt,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a new user and returns the stored record.
func (r *UserRepo) Create(ctx context.Context, id string, input domain.NewUserInput) (*domain.User, error) {
	var gymID interface{}
	if input.GymID != "" {
		gymID = input.GymID
	}

	query := `
	INSERT INTO users (id, email, name, password_hash, role, gym_id, active)
	VALUES ($1, $2, $3, $4, $5, $6, TRUE)
	RETURNING ` + userSelectFields + `;
	`
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, id, input.Email, input.Name, input.PasswordHash, input.Role, gymID))
	if err != nil {
		// Two registrations can race past the existence check; the unique
		// index on email settles it.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("%w: failed to create user: %v", domain.ErrStoreUnavailable, err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email. Returns (nil, nil) when absent.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userSelectFields + ` FROM users WHERE email = $1;`
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get user: %v", domain.ErrStoreUnavailable, err)
	}
	return user, nil
}

// GetByID retrieves a user by ID. Returns (nil, nil) when absent.
func (r *UserRepo) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	query := `SELECT ` + userSelectFields + ` FROM users WHERE id = $1;`
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get user: %v", domain.ErrStoreUnavailable, err)
	}
	return user, nil
}

// UpdateLastLogin stamps the last successful login time.
func (r *UserRepo) UpdateLastLogin(ctx context.Context, userID string) error {
	query := `UPDATE users SET last_login_at = CURRENT_TIMESTAMP WHERE id = $1;`
	if _, err := r.DB.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("%w: failed to update last login: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Update writes the enumerated fields of upd. The statement is assembled
// from the whitelist only; arbitrary key sets never reach SQL.
func (r *UserRepo) Update(ctx context.Context, userID string, upd domain.UserUpdate) (*domain.User, error) {
	if upd.Empty() {
		return r.GetByID(ctx, userID)
	}

	set := make([]string, 0, 4)
	args := make([]interface{}, 0, 5)
	args = append(args, userID)

	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Role != nil {
		add("role", *upd.Role)
	}
	if upd.GymID != nil {
		if *upd.GymID == "" {
			add("gym_id", nil)
		} else {
			add("gym_id", *upd.GymID)
		}
	}
	if upd.Active != nil {
		add("active", *upd.Active)
	}

	query := `UPDATE users SET ` + strings.Join(set, ", ") + ` WHERE id = $1 RETURNING ` + userSelectFields + `;`
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to update user: %v", domain.ErrStoreUnavailable, err)
	}
	return user, nil
}
