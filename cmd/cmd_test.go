package cmd

import (
	"bytes"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/visitsched/internal/aptner/aptnertest"
)

func setupCLI(t *testing.T) (*aptnertest.Server, string) {
	t.Helper()
	srv := aptnertest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddAccount("resident", "pw")

	dir := t.TempDir()
	t.Setenv("APTNER_ID", "resident")
	t.Setenv("APTNER_PW", "pw")
	t.Setenv("APTNER_BASE_URL", srv.URL)
	t.Setenv("APTNER_RATE", "0")
	t.Setenv("HISTORY_FILE", filepath.Join(dir, "car_history.yaml"))
	return srv, filepath.Join(dir, "missing.env")
}

func runCLI(t *testing.T, envFile string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--env-file", envFile, "--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestReserve_SkipsBookedDatesAndRemembersPhone(t *testing.T) {
	srv, envFile := setupCLI(t)
	srv.Seed(aptnertest.Reservation{CarNo: "12가3456", Phone: "010-1111-2222", VisitDate: "2026.03.03", Purpose: "family"})

	out, err := runCLI(t, envFile, "reserve",
		"--vehicle", "12가3456", "--phone", "010-1111-2222",
		"--weekdays", "tue,thu", "--weeks", "1", "--start", "2026.03.02")
	require.NoError(t, err, out)
	assert.Contains(t, out, "2026.03.03 (화)  skipped-duplicate")
	assert.Contains(t, out, "2026.03.05 (목)  created")
	assert.Contains(t, out, "completed: 1 created, 1 skipped as duplicates, 0 failed")
	assert.Len(t, srv.Reservations(), 2)

	out, err = runCLI(t, envFile, "history")
	require.NoError(t, err)
	assert.Equal(t, "12가3456\t010-1111-2222\n", out)

	// the phone comes from history on the next run
	out, err = runCLI(t, envFile, "reserve",
		"--vehicle", "12가3456", "--weekdays", "wed", "--weeks", "1", "--start", "2026.03.02")
	require.NoError(t, err, out)
	assert.Contains(t, out, "2026.03.04 (수)  created")

	rs := srv.Reservations()
	require.Len(t, rs, 3)
	assert.Equal(t, "010-1111-2222", rs[2].Phone)
}

func TestReserve_DryRunBooksNothing(t *testing.T) {
	srv, envFile := setupCLI(t)
	srv.Seed(aptnertest.Reservation{CarNo: "12가3456", Phone: "010", VisitDate: "2026.03.03"})

	out, err := runCLI(t, envFile, "reserve", "--dry-run",
		"--vehicle", "12가3456", "--phone", "010",
		"--weekdays", "1,3", "--weeks", "1", "--start", "2026.03.02")
	require.NoError(t, err)
	assert.Contains(t, out, "2026.03.03 (화)  already booked")
	assert.Contains(t, out, "2026.03.05 (목)  new")
	assert.Contains(t, out, "1 to book, 1 already booked")
	assert.Zero(t, srv.Creates)
}

func TestReserve_FailedDatesExitNonZero(t *testing.T) {
	srv, envFile := setupCLI(t)
	srv.FailCreate("2026.03.05", 500)

	out, err := runCLI(t, envFile, "reserve",
		"--vehicle", "12가3456", "--phone", "010",
		"--weekdays", "tue,thu", "--weeks", "1", "--start", "2026.03.02")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 dates failed")
	assert.Contains(t, out, "2026.03.03 (화)  created")
}

func TestReserve_RequiresAccount(t *testing.T) {
	_, envFile := setupCLI(t)
	t.Setenv("APTNER_PW", "")

	_, err := runCLI(t, envFile, "reserve", "--vehicle", "A", "--phone", "010", "--weekdays", "mon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APTNER_PW")
}

func TestReservationsDelete(t *testing.T) {
	srv, envFile := setupCLI(t)
	id := srv.Seed(aptnertest.Reservation{CarNo: "A", Phone: "010", VisitDate: "2026.03.03"})

	out, err := runCLI(t, envFile, "reservations", "delete", "999999", strconv.FormatInt(id, 10))
	require.NoError(t, err, out)
	assert.Contains(t, out, "999999  not-found")
	assert.Contains(t, out, strconv.FormatInt(id, 10)+"  deleted")
	assert.Empty(t, srv.Reservations())
}

func TestKeys(t *testing.T) {
	_, envFile := setupCLI(t)
	out, err := runCLI(t, envFile, "keys")
	require.NoError(t, err)
	for _, k := range []string{"COOKIE_HASH_KEY=", "COOKIE_BLOCK_KEY=", "CRED_ENC_KEY="} {
		assert.Contains(t, out, k)
	}
}
