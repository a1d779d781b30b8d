package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"user-records-service/internal/domain/user"
	usecase "user-records-service/internal/usecase/user"
)

func setupTestDB(t *testing.T) *gorm.DB {
	path := filepath.Join(t.TempDir(), "users.db")
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, ApplySchema(db))
	return db
}

func setupTestStore(t *testing.T) (*Store, *gorm.DB) {
	db := setupTestDB(t)
	return NewStore(db, zaptest.NewLogger(t)), db
}

func newUser(name, email string, recs ...string) *user.User {
	return &user.User{Name: name, Email: email, Recommendations: recs}
}

func TestApplySchema_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, ApplySchema(db))
	assert.True(t, db.Migrator().HasTable("users"))
	assert.True(t, db.Migrator().HasColumn(&UserSchema{}, "recommendations"))
}

func TestUserRepo_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepo(db, zaptest.NewLogger(t))
	ctx := context.Background()

	age := 30
	zip := "1000"
	u := &user.User{Name: "A", Email: "a@x.com", Age: &age, Recommendations: []string{"x", "y"}, ZipCode: &zip}

	id, err := repo.Create(ctx, u)
	require.NoError(t, err)
	assert.Positive(t, id)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "A", got.Name)
	assert.Equal(t, 30, *got.Age)
	assert.Equal(t, []string{"x", "y"}, got.Recommendations)
	assert.Equal(t, "1000", *got.ZipCode)

	byEmail, err := repo.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, id, byEmail.ID)
}

func TestUserRepo_Create_IDsAreUniqueAndIncreasing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepo(db, zaptest.NewLogger(t))
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		id, err := repo.Create(ctx, newUser("U", fmt.Sprintf("u%d@x.com", i)))
		require.NoError(t, err)
		assert.Greater(t, id, last)
		last = id
	}
}

func TestUserRepo_Create_UniqueIndex(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepo(db, zaptest.NewLogger(t))
	ctx := context.Background()

	_, err := repo.Create(ctx, newUser("A", "a@x.com"))
	require.NoError(t, err)

	_, err = repo.Create(ctx, newUser("B", "a@x.com"))
	require.Error(t, err)
	assert.ErrorIs(t, err, user.ErrEmailTaken)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUserRepo_Create_EmailIsCaseSensitive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepo(db, zaptest.NewLogger(t))
	ctx := context.Background()

	_, err := repo.Create(ctx, newUser("A", "a@x.com"))
	require.NoError(t, err)

	_, err = repo.Create(ctx, newUser("A", "A@X.COM"))
	require.NoError(t, err)

	found, err := repo.GetByEmail(ctx, "A@x.com")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestUserRepo_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepo(db, zaptest.NewLogger(t))

	got, err := repo.GetByID(context.Background(), 404)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestUserRepo_Update_ReplacesAllFields(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepo(db, zaptest.NewLogger(t))
	ctx := context.Background()

	age := 30
	zip := "1000"
	id, err := repo.Create(ctx, &user.User{Name: "A", Email: "a@x.com", Age: &age, Recommendations: []string{"x"}, ZipCode: &zip})
	require.NoError(t, err)

	_, err = repo.Update(ctx, &user.User{ID: id, Name: "A2", Email: "a2@x.com"})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "A2", got.Name)
	assert.Equal(t, "a2@x.com", got.Email)
	assert.Nil(t, got.Age)
	assert.Nil(t, got.ZipCode)
	assert.Equal(t, []string{}, got.Recommendations)
}

func TestUserRepo_Update_SameValues(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepo(db, zaptest.NewLogger(t))
	ctx := context.Background()

	u := newUser("A", "a@x.com", "x")
	id, err := repo.Create(ctx, u)
	require.NoError(t, err)

	u.ID = id
	_, err = repo.Update(ctx, u)
	assert.NoError(t, err)
}

func TestUserRepo_Update_NotFoundLeavesStoreUnchanged(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepo(db, zaptest.NewLogger(t))
	ctx := context.Background()

	id, err := repo.Create(ctx, newUser("A", "a@x.com", "x"))
	require.NoError(t, err)

	_, err = repo.Update(ctx, &user.User{ID: id + 100, Name: "B", Email: "b@x.com"})
	assert.ErrorIs(t, err, user.ErrNotFound)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "A", users[0].Name)
	assert.Equal(t, []string{"x"}, users[0].Recommendations)
}

func TestUserRepo_Update_EmailOwnedByAnotherUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepo(db, zaptest.NewLogger(t))
	ctx := context.Background()

	_, err := repo.Create(ctx, newUser("A", "a@x.com"))
	require.NoError(t, err)
	idB, err := repo.Create(ctx, newUser("B", "b@x.com"))
	require.NoError(t, err)

	_, err = repo.Update(ctx, &user.User{ID: idB, Name: "B", Email: "a@x.com"})
	assert.ErrorIs(t, err, user.ErrEmailTaken)
}

func TestUserRepo_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepo(db, zaptest.NewLogger(t))
	ctx := context.Background()

	id, err := repo.Create(ctx, newUser("A", "a@x.com"))
	require.NoError(t, err)
	keep, err := repo.Create(ctx, newUser("B", "b@x.com"))
	require.NoError(t, err)

	deleted, err := repo.Delete(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, deleted)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, keep, users[0].ID)

	_, err = repo.Delete(ctx, id)
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestUserRepo_List_Empty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepo(db, zaptest.NewLogger(t))

	users, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestUserRepo_List_NullRecommendations(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepo(db, zaptest.NewLogger(t))

	// Rows written by other tools may leave the column NULL.
	require.NoError(t, db.Exec("INSERT INTO users (user_name, user_email) VALUES (?, ?)", "legacy", "legacy@x.com").Error)

	users, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, []string{}, users[0].Recommendations)
}

func TestStore_WithSession_CommitsOnSuccess(t *testing.T) {
	store, db := setupTestStore(t)
	ctx := context.Background()

	var id int64
	err := store.WithSession(ctx, func(repo usecase.Repository) error {
		var err error
		id, err = repo.Create(ctx, newUser("A", "a@x.com"))
		return err
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&UserSchema{}).Where("user_id = ?", id).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestStore_WithSession_RollsBackOnError(t *testing.T) {
	store, db := setupTestStore(t)
	ctx := context.Background()
	sentinel := errors.New("abort")

	err := store.WithSession(ctx, func(repo usecase.Repository) error {
		if _, err := repo.Create(ctx, newUser("A", "a@x.com")); err != nil {
			return err
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	var count int64
	require.NoError(t, db.Model(&UserSchema{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestStore_WithSession_RollsBackOnPanic(t *testing.T) {
	store, db := setupTestStore(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = store.WithSession(ctx, func(repo usecase.Repository) error {
			if _, err := repo.Create(ctx, newUser("A", "a@x.com")); err != nil {
				return err
			}
			panic("handler bug")
		})
	})

	// The connection was released: the next session can run.
	err := store.WithSession(ctx, func(repo usecase.Repository) error {
		users, err := repo.List(ctx)
		if err != nil {
			return err
		}
		assert.Empty(t, users)
		return nil
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&UserSchema{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestStore_ConcurrentCreatesSameEmail(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithSession(ctx, func(repo usecase.Repository) error {
				existing, err := repo.GetByEmail(ctx, "race@x.com")
				if err != nil {
					return err
				}
				if existing != nil {
					return user.ErrEmailTaken
				}
				_, err = repo.Create(ctx, newUser("R", "race@x.com"))
				return err
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, user.ErrEmailTaken):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, conflicts)
}

func TestStore_Ping(t *testing.T) {
	store, _ := setupTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
