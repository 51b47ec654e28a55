package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdesk/internal/tasks"
)

// useTempConfig points the config (and with it the db, log and export dir)
// at a fresh directory.
func useTempConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TASKDESK_CONFIG", filepath.Join(dir, "config.toml"))
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var outBuf, errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return outBuf.String(), err
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func runJSON(t *testing.T, dst any, args ...string) {
	t.Helper()
	out, err := runCLI(t, append([]string{"--format", "json"}, args...)...)
	require.NoError(t, err, out)
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env), out)
	require.Equal(t, "ok", env.Status)
	if dst != nil {
		require.NoError(t, json.Unmarshal(env.Data, dst))
	}
}

func addTask(t *testing.T, id, name string) tasks.Record {
	t.Helper()
	var rec tasks.Record
	runJSON(t, &rec, "add", "--set", "ID Proyecto="+id, "--set", "Nombre Tarea="+name)
	return rec
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "taskdesk", cmd.Use)

	for _, name := range []string{"add", "edit", "delete", "clear", "list", "show", "import", "export", "schema"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	for _, name := range []string{"sheet", "doc"} {
		sub, _, err := cmd.Find([]string{"export", name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	for _, name := range []string{"config", "db", "schema"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestInvalidFormat(t *testing.T) {
	useTempConfig(t)
	_, err := runCLI(t, "--format", "yaml", "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestAdd_PersistsAcrossInvocations(t *testing.T) {
	useTempConfig(t)
	first := addTask(t, "P-1", "Login page")
	second := addTask(t, "P-2", "Checkout")
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "", first.Values["Estado"], "every schema field is present")

	var page listPage
	runJSON(t, &page, "list")
	require.Len(t, page.Items, 2)
	assert.Equal(t, first.ID, page.Items[0].ID)
	assert.Equal(t, "Checkout", page.Items[1].Value("Nombre Tarea"))
}

func TestAdd_RequiredFields(t *testing.T) {
	useTempConfig(t)
	_, err := runCLI(t, "add", "--set", "ID Proyecto=P-1")
	var verr tasks.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"Nombre Tarea"}, verr.Missing)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var page listPage
	runJSON(t, &page, "list")
	assert.Zero(t, page.Count)
}

func TestAdd_UnknownField(t *testing.T) {
	useTempConfig(t)
	_, err := runCLI(t, "add", "--set", "Colour=red")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown field "Colour"`)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = runCLI(t, "add", "--set", "no-equals")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestEdit_KeepsUnsetFields(t *testing.T) {
	useTempConfig(t)
	rec := addTask(t, "P-1", "Login page")

	var updated tasks.Record
	runJSON(t, &updated, "edit", rec.ID[:8], "--set", "estado=Done")
	assert.Equal(t, rec.ID, updated.ID)
	assert.Equal(t, "Done", updated.Value("Estado"))
	assert.Equal(t, "Login page", updated.Value("Nombre Tarea"))

	_, err := runCLI(t, "edit", rec.ID, "--set", "Nombre Tarea= ")
	var verr tasks.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = runCLI(t, "edit", "nope", "--set", "Estado=x")
	var nf tasks.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestDelete(t *testing.T) {
	useTempConfig(t)
	a := addTask(t, "P-1", "A")
	addTask(t, "P-2", "B")

	var res struct {
		ID      string `json:"id"`
		Deleted bool   `json:"deleted"`
	}
	runJSON(t, &res, "delete", "missing-id")
	assert.False(t, res.Deleted)

	runJSON(t, &res, "delete", a.ID)
	assert.True(t, res.Deleted)
	assert.Equal(t, a.ID, res.ID)

	var page listPage
	runJSON(t, &page, "list")
	require.Len(t, page.Items, 1)
	assert.Equal(t, "B", page.Items[0].Value("Nombre Tarea"))
}

func TestClear(t *testing.T) {
	useTempConfig(t)
	addTask(t, "P-1", "A")

	_, err := runCLI(t, "clear")
	require.Error(t, err)

	out, err := runCLI(t, "clear", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "Deleted 1 tasks\n", out)

	var page listPage
	runJSON(t, &page, "list")
	assert.Zero(t, page.Total)
}

func TestList_FilterAndPages(t *testing.T) {
	useTempConfig(t)
	for i := 1; i <= 7; i++ {
		addTask(t, fmt.Sprintf("P-%d", i), fmt.Sprintf("Task %d", i))
	}
	addTask(t, "Q-1", "Other")

	var page listPage
	runJSON(t, &page, "list", "--page-size", "5", "--page", "2")
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Items, 3)

	runJSON(t, &page, "list", "-q", "TASK")
	assert.Equal(t, 7, page.Count)
	assert.Equal(t, 8, page.Total)

	_, err := runCLI(t, "list", "--page", "3")
	require.ErrorIs(t, err, tasks.ErrPageOutOfRange)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, err = runCLI(t, "list", "--page", "0")
	require.ErrorIs(t, err, tasks.ErrPageOutOfRange)

	out, err := runCLI(t, "list", "-q", "other")
	require.NoError(t, err)
	assert.Contains(t, out, "Q-1")
	assert.Contains(t, out, "page 1/1 · 1 of 8 tasks match \"other\"")
}

func TestShow(t *testing.T) {
	useTempConfig(t)
	rec := addTask(t, "P-1", "Login page")

	out, err := runCLI(t, "show", rec.ID, "--raw")
	require.NoError(t, err)
	assert.Contains(t, out, "## Login page")
	assert.Contains(t, out, "| ID Proyecto | P-1 |")

	out, err = runCLI(t, "show", rec.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Login page")
}

func TestExportImport_RoundTrip(t *testing.T) {
	dir := useTempConfig(t)
	addTask(t, "P-1", "Login page")
	addTask(t, "P-2", "Checkout")

	file := filepath.Join(dir, "out.xlsx")
	var exported struct {
		Path  string `json:"path"`
		Count int    `json:"count"`
	}
	runJSON(t, &exported, "export", "sheet", "-o", file)
	assert.Equal(t, 2, exported.Count)

	_, err := runCLI(t, "clear", "--yes")
	require.NoError(t, err)

	var imported map[string]int
	runJSON(t, &imported, "import", file)
	assert.Equal(t, 2, imported["imported"])

	var page listPage
	runJSON(t, &page, "list")
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Login page", page.Items[0].Value("Nombre Tarea"))

	_, err = runCLI(t, "import", filepath.Join(dir, "missing.xlsx"))
	var derr tasks.DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestExportSheet_DefaultPath(t *testing.T) {
	dir := useTempConfig(t)
	addTask(t, "P-1", "Login page")
	_, err := runCLI(t, "export", "sheet")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "exports", "tasks.xlsx"))
	assert.NoError(t, err)
}

func TestExportDoc(t *testing.T) {
	dir := useTempConfig(t)
	rec := addTask(t, "P-1", "Login page")

	out := filepath.Join(dir, "docs")
	var res map[string]string
	runJSON(t, &res, "export", "doc", rec.ID, "-o", out)
	assert.Equal(t, filepath.Join(out, "P-1_Login_page.docx"), res["path"])
	_, err := os.Stat(res["path"])
	assert.NoError(t, err)
}

func TestSchemaCommand(t *testing.T) {
	useTempConfig(t)
	out, err := runCLI(t, "--schema", "qa", "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "schema qa")
	assert.Contains(t, out, "DRS (required)")
	assert.Contains(t, out, "Detalles (multi-line)")

	_, err = runCLI(t, "--schema", "kanban", "schema")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSchemaSwitch_KeepsEachCollection(t *testing.T) {
	useTempConfig(t)
	project := addTask(t, "P-1", "Login page")

	var qa tasks.Record
	runJSON(t, &qa, "--schema", "qa", "add", "--set", "DRS=D-1", "--set", "Descripcion=smoke")

	var page listPage
	runJSON(t, &page, "list")
	require.Len(t, page.Items, 1)
	assert.Equal(t, project.ID, page.Items[0].ID)
	assert.Equal(t, "Login page", page.Items[0].Value("Nombre Tarea"))
	assert.Equal(t, "P-1", page.Items[0].Value("ID Proyecto"))

	runJSON(t, &page, "--schema", "qa", "list")
	require.Len(t, page.Items, 1)
	assert.Equal(t, qa.ID, page.Items[0].ID)
	assert.Equal(t, "D-1", page.Items[0].Value("DRS"))
}

func TestList_ReportsLastSave(t *testing.T) {
	useTempConfig(t)
	var page listPage
	runJSON(t, &page, "list")
	assert.Nil(t, page.SavedAt, "nothing saved yet")

	addTask(t, "P-1", "Login page")
	runJSON(t, &page, "list")
	require.NotNil(t, page.SavedAt)

	out, err := runCLI(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "last saved ")
}

func TestResolveID(t *testing.T) {
	recs := []tasks.Record{{ID: "abc123"}, {ID: "abd456"}, {ID: "ab"}}

	id, err := resolveID(recs, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	id, err = resolveID(recs, "ab")
	require.NoError(t, err)
	assert.Equal(t, "ab", id, "exact match wins over prefixes")

	_, err = resolveID(recs[:2], "ab")
	assert.ErrorContains(t, err, "ambiguous")

	_, err = resolveID(recs, "zz")
	var nf tasks.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestWritable_RefusesAfterLoadFailure(t *testing.T) {
	s := &session{loadErr: tasks.PersistenceError{Op: "load", Err: errors.New("bad json")}}
	err := s.writable()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestWriteError(t *testing.T) {
	var buf bytes.Buffer
	WriteError(&buf, "json", tasks.NotFoundError{ID: "x"})
	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ExitFailure, resp.Error.Code)
	assert.Equal(t, "task not found: x", resp.Error.Message)

	buf.Reset()
	WriteError(&buf, "text", errors.New("boom"))
	assert.Equal(t, "Error: boom\n", buf.String())
}
