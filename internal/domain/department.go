package domain

import "time"

// Department owns tickets and grants its members visibility over them.
type Department struct {
	ID        int64
	Name      string
	IsActive  bool
	CreatedAt time.Time
}
