package store

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventCSVReader(t *testing.T) {
	input := strings.Join([]string{
		"accident_datetime,province,latitude,longitude,number_of_fatalities,vehicle_type",
		"2024-01-05 08:30:00,Bangkok,13.7563,100.5018,1,motorcycle",
		"2024-02-10T22:00:00,Chonburi,13.3611,100.9847,0,car",
	}, "\n")

	r, err := NewEventCSVReader(strings.NewReader(input))
	require.NoError(t, err)

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.ID)
	assert.Equal(t, "Bangkok", first.Province)
	assert.Equal(t, "motorcycle", first.Vehicle)
	assert.Equal(t, 1, first.Fatalities)
	assert.Equal(t, time.Date(2024, 1, 5, 8, 30, 0, 0, time.UTC), first.DateTime)

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.ID)
	assert.Equal(t, "Chonburi", second.Province)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestEventCSVReaderColumnOrderIndependent(t *testing.T) {
	input := "longitude,latitude,id,accident_datetime\n100.5,13.7,42,2024-03-01\n"
	r, err := NewEventCSVReader(strings.NewReader(input))
	require.NoError(t, err)

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), rec.ID)
	assert.Equal(t, 13.7, rec.Latitude)
	assert.Equal(t, 100.5, rec.Longitude)
}

func TestEventCSVReaderRejectsMissingColumns(t *testing.T) {
	_, err := NewEventCSVReader(strings.NewReader("province,latitude,longitude\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accident_datetime")
}

func TestEventCSVReaderBadRowIsIsolated(t *testing.T) {
	input := strings.Join([]string{
		"accident_datetime,latitude,longitude",
		"not-a-date,13.7,100.5",
		"2024-05-01 12:00:00,13.7,100.5",
	}, "\n")
	r, err := NewEventCSVReader(strings.NewReader(input))
	require.NoError(t, err)

	_, err = r.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accident_datetime")

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, 2024, rec.DateTime.Year())
}
