package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsTruncation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"string too long", &pgconn.PgError{Code: "22001"}, true},
		{"wrapped", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "22001"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTruncation(tt.err); got != tt.want {
				t.Errorf("IsTruncation() = %v, want %v", got, tt.want)
			}
		})
	}
}
