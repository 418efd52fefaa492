package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/mktbiz-byte/cnec-platform/internal/model"
)

func TestWriteCreatorsXLSX(t *testing.T) {
	result := model.NewAggregateResult()
	result.ByRegion[model.RegionKorea] = []model.Creator{
		{
			ID: "k1", Name: "지은", Email: "jieun@example.com",
			InstagramURL: "https://www.instagram.com/jieun", InstagramFollowers: 1200,
			Region: model.RegionKorea,
		},
	}
	result.Counts[model.RegionKorea] = 1
	result.Total = 1

	var buf bytes.Buffer
	require.NoError(t, WriteCreatorsXLSX(&buf, result))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)

	// Summary plus one sheet per region, even the empty ones.
	require.Len(t, f.Sheets, 1+len(model.AllRegions))
	assert.Equal(t, "Summary", f.Sheets[0].Name)

	korea, ok := f.Sheet["Korea"]
	require.True(t, ok)
	require.Len(t, korea.Rows, 2)
	assert.Equal(t, "지은", korea.Rows[1].Cells[1].String())
	assert.Equal(t, "https://www.instagram.com/jieun", korea.Rows[1].Cells[4].String())

	japan, ok := f.Sheet["Japan"]
	require.True(t, ok)
	assert.Len(t, japan.Rows, 1, "empty region keeps its header row")

	summary := f.Sheets[0]
	assert.Equal(t, "total", summary.Rows[len(summary.Rows)-1].Cells[0].String())
}

func TestWriteCreatorsXLSX_NilResult(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, WriteCreatorsXLSX(&buf, nil))
}
