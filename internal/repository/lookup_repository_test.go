package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/casefile-api/internal/catalog"
)

func TestLookupRepositoryLabel(t *testing.T) {
	db, mock := newPostgresMock(t)
	repo := NewLookupRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT concat_ws(' ', names, lastnames) FROM professionals WHERE id = $1")).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"concat_ws"}).AddRow("Marta  Rojas "))

	label, err := repo.Label(context.Background(), catalog.LookupSpec{Table: "professionals", LabelColumns: []string{"names", "lastnames"}}, 9)
	require.NoError(t, err)
	assert.Equal(t, "Marta  Rojas", label)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLookupRepositoryStudent(t *testing.T) {
	db, mock := newPostgresMock(t)
	repo := NewLookupRepository(db)

	birth := time.Date(2010, 3, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM students")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "identification_number", "names", "father_lastname", "mother_lastname", "birth_date", "gender_id", "nationality_id", "commune_id", "address", "phone", "school_id", "course_id"}).
			AddRow(int64(7), "12.345.678-9", "Sofía", "Pérez", "Soto", birth, int64(2), nil, nil, "", "", int64(3), nil))

	student, err := repo.Student(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Sofía", student.Names)
	require.NotNil(t, student.BirthDate)
	assert.True(t, birth.Equal(*student.BirthDate))
	assert.Nil(t, student.NationalityID)
	require.NoError(t, mock.ExpectationsWereMet())
}
