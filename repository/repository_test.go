package repository

import (
	"path/filepath"
	"testing"

	"github.com/ShafiqSadat/ZKFingerprint/database"
	"github.com/ShafiqSadat/ZKFingerprint/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.InitGormDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(db))
	return db
}

func TestPersonRepositoryCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	people := NewPersonRepository(db)

	person := &models.Person{Name: "Amina"}
	require.NoError(t, people.Create(person))
	require.NotZero(t, person.ID)
	assert.NotZero(t, person.CreatedAt)

	got, err := people.GetByID(person.ID)
	require.NoError(t, err)
	assert.Equal(t, "Amina", got.Name)
}

func TestPersonRepositoryGetMissing(t *testing.T) {
	db := newTestDB(t)
	people := NewPersonRepository(db)

	_, err := people.GetByID(42)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestTemplateRepositorySaveThenFindInInsertionOrder(t *testing.T) {
	db := newTestDB(t)
	people := NewPersonRepository(db)
	templates := NewTemplateRepository(db)

	person := &models.Person{Name: "Bilal"}
	require.NoError(t, people.Create(person))

	first, err := templates.Save(person.ID, []byte("template-one"))
	require.NoError(t, err)
	second, err := templates.Save(person.ID, []byte("template-two"))
	require.NoError(t, err)
	require.Greater(t, second.ID, first.ID)

	found, err := templates.FindByPerson(person.ID)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, []byte("template-one"), found[0].Data)
	assert.Equal(t, []byte("template-two"), found[1].Data)
}

func TestTemplateRepositoryRejectsEmptyData(t *testing.T) {
	db := newTestDB(t)
	templates := NewTemplateRepository(db)

	_, err := templates.Save(1, nil)
	assert.Error(t, err)
}

func TestTemplateRepositoryListAllPairsOwners(t *testing.T) {
	db := newTestDB(t)
	people := NewPersonRepository(db)
	templates := NewTemplateRepository(db)

	alice := &models.Person{Name: "Alice"}
	bob := &models.Person{Name: "Bob"}
	require.NoError(t, people.Create(alice))
	require.NoError(t, people.Create(bob))

	_, err := templates.Save(alice.ID, []byte("a1"))
	require.NoError(t, err)
	_, err = templates.Save(bob.ID, []byte("b1"))
	require.NoError(t, err)
	_, err = templates.Save(alice.ID, []byte("a2"))
	require.NoError(t, err)

	snapshot, err := templates.ListAll()
	require.NoError(t, err)
	require.Len(t, snapshot, 3)

	// template insertion order, each paired with its owner
	assert.Equal(t, "Alice", snapshot[0].Person.Name)
	assert.Equal(t, []byte("a1"), snapshot[0].Template.Data)
	assert.Equal(t, "Bob", snapshot[1].Person.Name)
	assert.Equal(t, "Alice", snapshot[2].Person.Name)
	assert.Equal(t, []byte("a2"), snapshot[2].Template.Data)
}

func TestPersonRepositoryDeleteCascades(t *testing.T) {
	db := newTestDB(t)
	people := NewPersonRepository(db)
	templates := NewTemplateRepository(db)

	keep := &models.Person{Name: "Keep"}
	drop := &models.Person{Name: "Drop"}
	require.NoError(t, people.Create(keep))
	require.NoError(t, people.Create(drop))
	_, err := templates.Save(keep.ID, []byte("kept"))
	require.NoError(t, err)
	_, err = templates.Save(drop.ID, []byte("gone-1"))
	require.NoError(t, err)
	_, err = templates.Save(drop.ID, []byte("gone-2"))
	require.NoError(t, err)

	require.NoError(t, people.Delete(drop.ID))

	_, err = people.GetByID(drop.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	orphans, err := templates.FindByPerson(drop.ID)
	require.NoError(t, err)
	assert.Empty(t, orphans)

	remaining, err := templates.ListAll()
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, keep.ID, remaining[0].Person.ID)
}

func TestPersonRepositoryDeleteMissing(t *testing.T) {
	db := newTestDB(t)
	people := NewPersonRepository(db)

	assert.ErrorIs(t, people.Delete(99), gorm.ErrRecordNotFound)
}
