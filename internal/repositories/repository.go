package repositories

import "context"

// Repository aggregates every repository of the catalog service
type Repository interface {
	Program() ProgramRepository
	Lecture() LectureRepository

	// Waitlist is write-only from the public surface
	Waitlist() WaitlistRepository

	Post() PostRepository
	Review() ReviewRepository

	// Backed by the identity provider, not Postgres
	User() UserRepository

	// WithTransaction runs fn against a repository bound to a single
	// database transaction. Returning an error rolls it back.
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	Ping(ctx context.Context) error
	Close() error
}

// RepositoryManager owns the connections behind a Repository
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
