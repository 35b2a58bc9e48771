// Package export projects an analysis edge list into files people share: a CSV
// sheet, a package.xml manifest, a YAML manifest, and an aligned text table.
//
// Every projection reads only the flat edge list, so results loaded from any
// source can be exported the same way:
//
//	if err := export.Write(w, export.FormatCSV, result.Edges, export.Options{}); err != nil {
//		return err
//	}
package export
