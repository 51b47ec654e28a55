package tasks

// Import appends decoded rows to the store as new records. Columns outside
// the schema are dropped and absent ones read as "". Existing records are
// left alone. It returns the number of rows imported.
func Import(s *Store, rows []map[string]string) int {
	if len(rows) == 0 {
		return 0
	}
	recs := make([]Record, len(rows))
	for i, row := range rows {
		recs[i] = Record{Values: row}
	}
	return len(s.MergeAppend(recs))
}
