package main

import (
	"fmt"
	"reflect"
	"time"

	"github.com/pegasusheavy/go-ioc/di"
)

// =============================================================================
// Domain Interfaces
// =============================================================================

// Logger defines the logging contract.
type Logger interface {
	Log(message string)
	LogError(message string)
}

// Config holds application configuration.
type Config interface {
	DatabaseURL() string
	CacheEnabled() bool
}

// Database represents a database connection.
type Database interface {
	Query(sql string) ([]map[string]any, error)
	Close() error
}

// Cache represents a caching layer.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
}

// UserRepository handles user data access.
type UserRepository interface {
	FindByID(id int) (*User, error)
	FindAll() ([]*User, error)
}

// UserService handles user business logic.
type UserService interface {
	GetUser(id int) (*User, error)
	ListUsers() ([]*User, error)
}

// =============================================================================
// Domain Models
// =============================================================================

// User represents a user entity.
type User struct {
	ID    int
	Name  string
	Email string
}

// =============================================================================
// Implementations
// =============================================================================

// ConsoleLogger logs to stdout.
type ConsoleLogger struct {
	prefix string
}

// NewConsoleLogger creates a new console logger.
func NewConsoleLogger() *ConsoleLogger {
	return &ConsoleLogger{prefix: "[APP]"}
}

func (l *ConsoleLogger) Log(message string) {
	fmt.Printf("%s %s INFO: %s\n", l.prefix, time.Now().Format("15:04:05"), message)
}

func (l *ConsoleLogger) LogError(message string) {
	fmt.Printf("%s %s ERROR: %s\n", l.prefix, time.Now().Format("15:04:05"), message)
}

// SilentLogger discards everything — registered under a named key so
// ResolveMany below has more than one Logger to find.
type SilentLogger struct{}

func NewSilentLogger() *SilentLogger   { return &SilentLogger{} }
func (l *SilentLogger) Log(string)      {}
func (l *SilentLogger) LogError(string) {}

// TimingLoggerDecorator wraps a Logger and prefixes every message with
// how long has elapsed since it was constructed, demonstrating the
// container's decorator composition.
type TimingLoggerDecorator struct {
	inner   Logger
	started time.Time
}

func NewTimingLoggerDecorator(inner Logger) *TimingLoggerDecorator {
	return &TimingLoggerDecorator{inner: inner, started: time.Now()}
}

func (d *TimingLoggerDecorator) Log(message string) {
	d.inner.Log(fmt.Sprintf("(+%s) %s", time.Since(d.started).Round(time.Millisecond), message))
}

func (d *TimingLoggerDecorator) LogError(message string) {
	d.inner.LogError(fmt.Sprintf("(+%s) %s", time.Since(d.started).Round(time.Millisecond), message))
}

// AppConfig holds app configuration.
type AppConfig struct {
	dbURL        string
	cacheEnabled bool
}

func NewAppConfig() *AppConfig {
	return &AppConfig{
		dbURL:        "postgres://localhost:5432/myapp",
		cacheEnabled: true,
	}
}

func (c *AppConfig) DatabaseURL() string { return c.dbURL }
func (c *AppConfig) CacheEnabled() bool  { return c.cacheEnabled }

// PostgresDatabase simulates a postgres connection.
type PostgresDatabase struct {
	logger Logger
	config Config
}

func NewPostgresDatabase(logger Logger, config Config) (*PostgresDatabase, error) {
	logger.Log(fmt.Sprintf("Connecting to database: %s", config.DatabaseURL()))
	return &PostgresDatabase{logger: logger, config: config}, nil
}

func (db *PostgresDatabase) Query(sql string) ([]map[string]any, error) {
	db.logger.Log(fmt.Sprintf("Executing query: %s", sql))
	return []map[string]any{
		{"id": 1, "name": "Alice", "email": "alice@example.com"},
		{"id": 2, "name": "Bob", "email": "bob@example.com"},
	}, nil
}

func (db *PostgresDatabase) Close() error {
	db.logger.Log("Closing database connection")
	return nil
}

// InMemoryCache is a simple in-memory cache.
type InMemoryCache struct {
	logger Logger
	data   map[string]any
}

func NewInMemoryCache(logger Logger) *InMemoryCache {
	logger.Log("Initializing in-memory cache")
	return &InMemoryCache{logger: logger, data: make(map[string]any)}
}

func (c *InMemoryCache) Get(key string) (any, bool) {
	val, ok := c.data[key]
	return val, ok
}

func (c *InMemoryCache) Set(key string, value any, ttl time.Duration) {
	c.data[key] = value
}

// DefaultUserRepository implements UserRepository.
type DefaultUserRepository struct {
	db     Database
	cache  Cache
	logger Logger
}

func NewUserRepository(db Database, cache Cache, logger Logger) *DefaultUserRepository {
	logger.Log("Creating user repository")
	return &DefaultUserRepository{db: db, cache: cache, logger: logger}
}

func (r *DefaultUserRepository) FindByID(id int) (*User, error) {
	cacheKey := fmt.Sprintf("user:%d", id)

	if cached, ok := r.cache.Get(cacheKey); ok {
		r.logger.Log(fmt.Sprintf("Cache hit for user %d", id))
		return cached.(*User), nil
	}

	r.logger.Log(fmt.Sprintf("Cache miss for user %d, querying database", id))
	results, err := r.db.Query(fmt.Sprintf("SELECT * FROM users WHERE id = %d", id))
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("user %d not found", id)
	}

	user := &User{
		ID:    results[0]["id"].(int),
		Name:  results[0]["name"].(string),
		Email: results[0]["email"].(string),
	}
	r.cache.Set(cacheKey, user, 5*time.Minute)
	return user, nil
}

func (r *DefaultUserRepository) FindAll() ([]*User, error) {
	results, err := r.db.Query("SELECT * FROM users")
	if err != nil {
		return nil, err
	}
	users := make([]*User, len(results))
	for i, row := range results {
		users[i] = &User{ID: row["id"].(int), Name: row["name"].(string), Email: row["email"].(string)}
	}
	return users, nil
}

// DefaultUserService implements UserService.
type DefaultUserService struct {
	repo   UserRepository
	logger Logger
}

func NewUserService(repo UserRepository, logger Logger) *DefaultUserService {
	logger.Log("Creating user service")
	return &DefaultUserService{repo: repo, logger: logger}
}

func (s *DefaultUserService) GetUser(id int) (*User, error) {
	s.logger.Log(fmt.Sprintf("Getting user %d", id))
	return s.repo.FindByID(id)
}

func (s *DefaultUserService) ListUsers() ([]*User, error) {
	s.logger.Log("Listing all users")
	return s.repo.FindAll()
}

// Repository is a generic, in-memory collection — registered as an
// open-generic family below so di.RegisterOpenGeneric has something real
// to specialize.
type Repository[T any] struct {
	items []T
}

func NewRepository[T any]() *Repository[T] { return &Repository[T]{} }

func (r *Repository[T]) Add(item T)  { r.items = append(r.items, item) }
func (r *Repository[T]) All() []T    { return append([]T(nil), r.items...) }
func (r *Repository[T]) Count() int  { return len(r.items) }

// =============================================================================
// Application Bootstrap
// =============================================================================

func main() {
	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║     Go Dependency Injection Demo                             ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Println()

	container := di.New()
	defer container.Close()

	registerDependencies(container)

	fmt.Println("\n─── Resolving UserService (will auto-resolve all dependencies) ───")
	fmt.Println()

	userService, err := di.Resolve[UserService](container)
	if err != nil {
		fmt.Printf("Failed to resolve UserService: %v\n", err)
		return
	}

	fmt.Println("\n─── Using the resolved service ───")
	fmt.Println()

	users, err := userService.ListUsers()
	if err != nil {
		fmt.Printf("Failed to list users: %v\n", err)
		return
	}

	fmt.Println("\n─── Results ───")
	fmt.Println()
	for _, user := range users {
		fmt.Printf("  → User: %s (%s)\n", user.Name, user.Email)
	}

	fmt.Println("\n─── Demonstrating Singleton Behavior ───")
	fmt.Println()
	logger1 := di.MustResolve[Logger](container)
	logger2 := di.MustResolve[Logger](container)
	logger1.Log("This is logger1")
	logger2.Log("This is logger2 (a new decorator around the same singleton as logger1)")

	demonstrateScopedResolution(container)
	demonstrateWrappers(container)
	demonstrateOpenGenerics(container)
	demonstrateDebugExpression(container)

	if err := container.Validate(); err != nil {
		fmt.Printf("\nValidation found problems: %v\n", err)
	} else {
		fmt.Println("\n─── Validate: every registration resolves cleanly ───")
	}

	fmt.Println("\n─── Demo Complete ───")
}

func registerDependencies(c *di.Container) {
	fmt.Println("─── Registering Dependencies ───")
	fmt.Println()

	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}

	must(di.RegisterType[Config, *AppConfig](c, NewAppConfig, di.Singleton))
	fmt.Println("  ✓ Config registered as Singleton")

	must(di.RegisterType[Logger, *ConsoleLogger](c, NewConsoleLogger, di.Singleton))
	fmt.Println("  ✓ Logger registered as Singleton")

	must(di.RegisterType[Logger, *SilentLogger](c, NewSilentLogger, di.Singleton, di.WithName("silent")))
	fmt.Println("  ✓ Logger(\"silent\") registered as Singleton")

	// Every Logger resolution now comes back wrapped with elapsed-time
	// prefixing — decorators apply regardless of how the service was keyed.
	must(di.RegisterDecorator[Logger](c, NewTimingLoggerDecorator, nil))
	fmt.Println("  ✓ TimingLoggerDecorator registered for Logger")

	must(di.RegisterType[Database, *PostgresDatabase](c, NewPostgresDatabase, di.Singleton))
	fmt.Println("  ✓ Database registered as Singleton")

	must(di.RegisterType[Cache, *InMemoryCache](c, NewInMemoryCache, di.Singleton))
	fmt.Println("  ✓ Cache registered as Singleton")

	must(di.RegisterType[UserRepository, *DefaultUserRepository](c, NewUserRepository, di.TransientReuse))
	fmt.Println("  ✓ UserRepository registered as Transient")

	must(di.RegisterType[UserService, *DefaultUserService](c, NewUserService, di.TransientReuse))
	fmt.Println("  ✓ UserService registered as Transient")
}

// RequestContext simulates a request-scoped dependency: one instance per
// HTTP request (here, per OpenScope'd container), torn down with the
// scope.
type RequestContext struct {
	RequestID string
	StartTime time.Time
}

func demonstrateScopedResolution(c *di.Container) {
	fmt.Println("\n─── Demonstrating Scoped Resolution ───")
	fmt.Println()

	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}

	must(di.RegisterDelegate[*RequestContext](c, func(*di.Container) (*RequestContext, error) {
		return &RequestContext{RequestID: fmt.Sprintf("req-%d", time.Now().UnixNano()), StartTime: time.Now()}, nil
	}, di.ScopedReuse))

	request1 := c.OpenScope("request-1")
	defer request1.Close()

	ctx1a := di.MustResolve[*RequestContext](request1)
	ctx1b := di.MustResolve[*RequestContext](request1)
	fmt.Printf("  Scope 'request-1' context A: %s\n", ctx1a.RequestID)
	fmt.Printf("  Scope 'request-1' context B: %s\n", ctx1b.RequestID)
	fmt.Printf("  Same instance? %v\n", ctx1a == ctx1b)

	request2 := c.OpenScope("request-2")
	defer request2.Close()
	ctx2 := di.MustResolve[*RequestContext](request2)
	fmt.Printf("\n  Scope 'request-2' context: %s\n", ctx2.RequestID)
	fmt.Printf("  Different from request-1? %v\n", ctx1a.RequestID != ctx2.RequestID)
}

func demonstrateWrappers(c *di.Container) {
	fmt.Println("\n─── Demonstrating Func, Lazy and Many ───")
	fmt.Println()

	getLogger := di.ResolveFunc[Logger](c)
	l1, _ := getLogger()
	l2, _ := getLogger()
	l1.Log("Func[Logger] call #1")
	l2.Log("Func[Logger] call #2 (same singleton underneath each call)")

	lazyDB := di.ResolveLazy[Database](c)
	fmt.Println("  Lazy[Database] constructed handle; not connected yet")
	db, err := lazyDB.Value()
	if err != nil {
		fmt.Printf("  Lazy[Database] failed: %v\n", err)
	} else {
		_, _ = db.Query("SELECT 1")
		fmt.Println("  Lazy[Database] resolved and queried on first Value() call")
	}

	loggers := di.ResolveMany[Logger](c).Resolve()
	fmt.Printf("  Many[Logger] found %d registered loggers\n", len(loggers))
}

func demonstrateOpenGenerics(c *di.Container) {
	fmt.Println("\n─── Demonstrating Open-Generic Repository[T] ───")
	fmt.Println()

	family := di.FamilyNameOf(reflect.TypeOf((*Repository[int])(nil)))
	di.RegisterOpenGeneric(c, family, di.NewOpenGenericBind(
		di.RegisterGenericCase[*Repository[int], *Repository[int]](NewRepository[int], di.Singleton, di.ServiceSetup(), false),
		di.RegisterGenericCase[*Repository[string], *Repository[string]](NewRepository[string], di.Singleton, di.ServiceSetup(), false),
	))

	intRepo, err := di.Resolve[*Repository[int]](c)
	if err != nil {
		fmt.Printf("  Repository[int] failed: %v\n", err)
		return
	}
	intRepo.Add(1)
	intRepo.Add(2)
	fmt.Printf("  Repository[int] specialized and holds %d items\n", intRepo.Count())

	strRepo := di.MustResolve[*Repository[string]](c)
	strRepo.Add("hello")
	fmt.Printf("  Repository[string] specialized independently, holds %d items\n", strRepo.Count())
}

func demonstrateDebugExpression(c *di.Container) {
	fmt.Println("\n─── Demonstrating DebugExpression ───")
	fmt.Println()

	expr, err := di.DebugExpressionOf[UserService](c)
	if err != nil {
		fmt.Printf("  DebugExpression failed: %v\n", err)
		return
	}
	fmt.Printf("  UserService expression: %s\n", expr)
}
