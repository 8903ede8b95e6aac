package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bankrest/cardtransfer/internal/apperr"
	"github.com/bankrest/cardtransfer/internal/models"
)

// UserByID retrieves a card owner.
func (u *unitOfWork) UserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT id, username, name, surname, email FROM users WHERE id = $1`
	user := &models.User{}
	err := u.q.QueryRowContext(ctx, query, id).
		Scan(&user.ID, &user.Username, &user.Name, &user.Surname, &user.Email)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: user", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}
