// Package export renders the aggregated creator directory to XLSX for
// the operations team.
package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/mktbiz-byte/cnec-platform/internal/model"
)

var creatorHeader = []string{
	"ID", "Name", "Email", "Phone",
	"Instagram", "Instagram Followers",
	"YouTube", "YouTube Subscribers",
	"TikTok", "TikTok Followers",
	"Total Followers", "Joined",
}

// WriteCreatorsXLSX writes one sheet per region plus a summary sheet.
// Regions with no creators still get a sheet so the workbook shape is
// stable across exports.
func WriteCreatorsXLSX(w io.Writer, result *model.AggregateResult) error {
	if result == nil {
		return eris.New("export: nil aggregate result")
	}

	f := xlsx.NewFile()

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	writeSummary(summary, result)

	for _, region := range model.AllRegions {
		sheet, err := f.AddSheet(sheetName(region))
		if err != nil {
			return eris.Wrapf(err, "export: add sheet %s", region)
		}
		writeRegionSheet(sheet, result.ByRegion[region])
	}

	return eris.Wrap(f.Write(w), "export: write workbook")
}

func writeSummary(sheet *xlsx.Sheet, result *model.AggregateResult) {
	header := sheet.AddRow()
	header.AddCell().Value = "Region"
	header.AddCell().Value = "Creators"

	for _, region := range model.AllRegions {
		row := sheet.AddRow()
		row.AddCell().Value = string(region)
		row.AddCell().SetInt(result.Counts[region])
	}

	total := sheet.AddRow()
	total.AddCell().Value = "total"
	total.AddCell().SetInt(result.Total)
}

func writeRegionSheet(sheet *xlsx.Sheet, creators []model.Creator) {
	header := sheet.AddRow()
	for _, col := range creatorHeader {
		header.AddCell().Value = col
	}

	for _, c := range creators {
		row := sheet.AddRow()
		row.AddCell().Value = c.ID
		row.AddCell().Value = c.Name
		row.AddCell().Value = c.Email
		row.AddCell().Value = c.Phone
		row.AddCell().Value = c.InstagramURL
		row.AddCell().SetInt64(c.InstagramFollowers)
		row.AddCell().Value = c.YouTubeURL
		row.AddCell().SetInt64(c.YouTubeSubscribers)
		row.AddCell().Value = c.TikTokURL
		row.AddCell().SetInt64(c.TikTokFollowers)
		row.AddCell().SetInt64(c.TotalFollowers())
		if !c.CreatedAt.IsZero() {
			row.AddCell().Value = c.CreatedAt.Format("2006-01-02")
		} else {
			row.AddCell().Value = ""
		}
	}
}

// sheetName maps regions to operator-facing sheet titles.
func sheetName(region model.Region) string {
	switch region {
	case model.RegionKorea:
		return "Korea"
	case model.RegionJapan:
		return "Japan"
	case model.RegionUS:
		return "US"
	case model.RegionTaiwan:
		return "Taiwan"
	default:
		return string(region)
	}
}
