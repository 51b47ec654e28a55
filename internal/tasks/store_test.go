package tasks

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdesk/internal/schema"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("t-%d", n)
	}
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithIDFunc(seqIDs())}, opts...)
	return NewStore(schema.Project(), opts...)
}

func values(id, name string) map[string]string {
	return map[string]string{"ID Proyecto": id, "Nombre Tarea": name}
}

func TestCreate_RequiredFieldGate(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Create(map[string]string{})
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"ID Proyecto", "Nombre Tarea"}, verr.Missing)

	_, err = s.Create(map[string]string{"ID Proyecto": "x"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"Nombre Tarea"}, verr.Missing)
	assert.Equal(t, 0, s.Len())

	rec, err := s.Create(values("x", "y"))
	require.NoError(t, err)
	assert.Equal(t, "t-1", rec.ID)
	assert.Equal(t, 1, s.Len())
}

func TestCreate_NormalizesToSchema(t *testing.T) {
	s := newTestStore(t)
	rec, err := s.Create(map[string]string{"ID Proyecto": "P1", "Nombre Tarea": "n", "Bogus": "z"})
	require.NoError(t, err)

	assert.Len(t, rec.Values, len(schema.Project().Fields))
	assert.Equal(t, "", rec.Value("Estado"))
	_, has := rec.Values["Bogus"]
	assert.False(t, has)
}

func TestCreate_WhitespaceOnlyRequiredFails(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create(values("  ", "y"))
	assert.ErrorAs(t, err, &ValidationError{})
}

func TestUpdate_KeepsIDAndPosition(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.Create(values("A", "a"))
	b, _ := s.Create(values("B", "b"))
	c, _ := s.Create(values("C", "c"))

	v := values("B2", "b2")
	v["Estado"] = "done"
	got, err := s.Update(b.ID, v)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	recs := s.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, []string{recs[0].ID, recs[1].ID, recs[2].ID})
	assert.Equal(t, "B2", recs[1].Value("ID Proyecto"))
	assert.Equal(t, "done", recs[1].Value("Estado"))
}

func TestUpdate_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Update("missing", values("a", "b"))
	var nf NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.ID)
}

func TestUpdate_RequiredFieldGate(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.Create(values("A", "a"))
	_, err := s.Update(a.ID, values("", "a"))
	require.ErrorAs(t, err, &ValidationError{})

	got, ok := s.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, "A", got.Value("ID Proyecto"))
}

func TestDelete_AbsentIsNoop(t *testing.T) {
	s := newTestStore(t)
	s.Create(values("A", "a"))
	s.Create(values("B", "b"))
	before := s.Records()

	notified := 0
	s.Subscribe(func([]Record) { notified++ })

	assert.False(t, s.Delete("nope"))
	assert.Equal(t, before, s.Records())
	assert.Zero(t, notified)
}

func TestDelete_RemovesAndNeverReusesID(t *testing.T) {
	ids := []string{"same", "same", "other"}
	i := 0
	s := NewStore(schema.Project(), WithIDFunc(func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}))

	a, err := s.Create(values("A", "a"))
	require.NoError(t, err)
	require.True(t, s.Delete(a.ID))
	assert.Equal(t, 0, s.Len())

	b, err := s.Create(values("B", "b"))
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "other", b.ID)
}

func TestDelete_OldSnapshotUnaffected(t *testing.T) {
	s := newTestStore(t)
	s.Create(values("A", "a"))
	b, _ := s.Create(values("B", "b"))
	s.Create(values("C", "c"))

	var snaps [][]Record
	s.Subscribe(func(r []Record) { snaps = append(snaps, r) })
	before := s.Records()

	s.Delete(b.ID)
	require.Len(t, snaps, 1)
	assert.Len(t, snaps[0], 2)
	assert.Len(t, before, 3)
	assert.Equal(t, "B", before[1].Value("ID Proyecto"))
}

func TestMergeAppend_NeverReplaces(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.Create(values("A", "a"))
	b, _ := s.Create(values("B", "b"))

	added := s.MergeAppend([]Record{
		{ID: a.ID, Values: values("X", "x")},
		{ID: "imported-1", Values: values("Y", "y")},
		{Values: map[string]string{"Estado": "open"}},
	})
	require.Len(t, added, 3)

	recs := s.Records()
	require.Len(t, recs, 5)
	assert.Equal(t, a, recs[0])
	assert.Equal(t, b, recs[1])
	for _, r := range added {
		assert.NotEqual(t, a.ID, r.ID)
		assert.NotEqual(t, "imported-1", r.ID)
	}
	assert.Equal(t, "open", recs[4].Value("Estado"))
	assert.Equal(t, "", recs[4].Value("ID Proyecto"))
}

func TestReplaceAll_AssignsMissingAndDuplicateIDs(t *testing.T) {
	s := newTestStore(t)
	s.Create(values("A", "a"))

	got := s.ReplaceAll([]Record{
		{ID: "keep", Values: values("K", "k")},
		{Values: values("N", "n")},
		{ID: "keep", Values: values("D", "d")},
	})
	require.Len(t, got, 3)
	assert.Equal(t, "keep", got[0].ID)
	assert.NotEmpty(t, got[1].ID)
	assert.NotEqual(t, "keep", got[2].ID)
	assert.NotEqual(t, got[1].ID, got[2].ID)
	assert.Equal(t, "K", s.Records()[0].Value("ID Proyecto"))
}

func TestClear_NotifiesEmpty(t *testing.T) {
	s := newTestStore(t)
	s.Create(values("A", "a"))

	var last []Record
	calls := 0
	s.Subscribe(func(r []Record) { last = r; calls++ })
	s.Clear()

	assert.Equal(t, 1, calls)
	assert.Empty(t, last)
	assert.Zero(t, s.Len())
}

func TestSubscribers_SeeEveryMutation(t *testing.T) {
	s := newTestStore(t)
	var lens []int
	s.Subscribe(func(r []Record) { lens = append(lens, len(r)) })

	a, _ := s.Create(values("A", "a"))
	s.Create(map[string]string{})
	s.Update(a.ID, values("A", "a2"))
	s.MergeAppend([]Record{{Values: values("B", "b")}})
	s.Delete(a.ID)
	s.ReplaceAll(nil)

	assert.Equal(t, []int{1, 1, 2, 1, 0}, lens)
}

func TestSubscribers_ConcurrentMutationsArriveInOrder(t *testing.T) {
	s := newTestStore(t)
	var lens []int
	s.Subscribe(func(r []Record) { lens = append(lens, len(r)) })

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(values(fmt.Sprintf("P-%d", i), "task"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, lens, n)
	for i, l := range lens {
		assert.Equal(t, i+1, l, "snapshot %d delivered out of order", i)
	}
}

func TestSeed_DoesNotNotify(t *testing.T) {
	s := newTestStore(t)
	calls := 0
	s.Subscribe(func([]Record) { calls++ })
	s.Seed([]Record{{ID: "p1", Values: values("A", "a")}})

	assert.Zero(t, calls)
	got, ok := s.Get("p1")
	require.True(t, ok)
	assert.Equal(t, "a", got.Value("Nombre Tarea"))

	rec, err := s.Create(values("B", "b"))
	require.NoError(t, err)
	assert.NotEqual(t, "p1", rec.ID)
}

func TestRecords_ReturnsCopies(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.Create(values("A", "a"))

	recs := s.Records()
	recs[0].Values["Nombre Tarea"] = "mutated"

	got, _ := s.Get(a.ID)
	assert.Equal(t, "a", got.Value("Nombre Tarea"))
}
