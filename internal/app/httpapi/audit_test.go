package httpapi

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/pkg/logger"
)

func TestAuditRingKeepsNewest(t *testing.T) {
	a := newAuditLog(3, nil, logger.Discard())
	for i := 1; i <= 5; i++ {
		a.record(auditEntry{Status: i})
	}

	all := a.recent(0)
	require.Len(t, all, 3)
	assert.Equal(t, []int{3, 4, 5}, []int{all[0].Status, all[1].Status, all[2].Status})

	last := a.recent(2)
	require.Len(t, last, 2)
	assert.Equal(t, 4, last[0].Status)
	assert.Equal(t, 5, last[1].Status)

	assert.Len(t, a.recent(50), 3)
}

func TestAuditEmpty(t *testing.T) {
	a := newAuditLog(0, nil, logger.Discard())
	assert.Empty(t, a.recent(10))
	assert.Len(t, a.ring, defaultAuditMax)
}

func TestAuditFileWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	file, err := openAuditFile(path)
	require.NoError(t, err)

	a := newAuditLog(10, file, logger.Discard())
	a.record(auditEntry{Method: "POST", Path: "/api/books", Status: 201})
	a.record(auditEntry{Method: "DELETE", Path: "/api/cart", Status: 200})
	require.NoError(t, file.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var got []auditEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e auditEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		got = append(got, e)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "/api/books", got[0].Path)
	assert.Equal(t, 200, got[1].Status)
}

func TestOpenAuditFileEmptyPath(t *testing.T) {
	file, err := openAuditFile("")
	require.NoError(t, err)
	assert.Nil(t, file)
	assert.NoError(t, file.Close())
}
