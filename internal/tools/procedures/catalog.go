// Package procedures exposes SQL Server stored-procedure metadata as the
// get_sp_list tool.
package procedures

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

type Parameter struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	MaxLength int64  `json:"max_length"`
	IsOutput  bool   `json:"is_output"`
}

type Procedure struct {
	Name   string      `json:"name"`
	Params []Parameter `json:"params"`
}

// Source returns every stored procedure with its parameters.
type Source interface {
	Fetch(ctx context.Context) ([]Procedure, error)
}

const sqlServerTypeExpr = "TYPE_NAME(prm.user_type_id)"

// CatalogSource reads sys.procedures and sys.parameters.
type CatalogSource struct {
	db       *sql.DB
	typeExpr string
}

func NewCatalogSource(db *sql.DB) *CatalogSource {
	return &CatalogSource{db: db, typeExpr: sqlServerTypeExpr}
}

func (s *CatalogSource) query() (string, []interface{}, error) {
	return sq.Select(
		"p.name AS procedure_name",
		"prm.name AS param_name",
		s.typeExpr+" AS param_type",
		"prm.max_length",
		"prm.is_output",
	).
		From("sys.procedures p").
		LeftJoin("sys.parameters prm ON p.object_id = prm.object_id").
		OrderBy("p.name", "prm.parameter_id").
		ToSql()
}

type catalogRow struct {
	procedure string
	param     sql.NullString
	paramType sql.NullString
	maxLength sql.NullInt64
	isOutput  sql.NullBool
}

func (s *CatalogSource) Fetch(ctx context.Context) ([]Procedure, error) {
	query, args, err := s.query()
	if err != nil {
		return nil, fmt.Errorf("build catalog query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query procedure catalog: %w", err)
	}
	defer rows.Close()

	var catalog []catalogRow
	for rows.Next() {
		var row catalogRow
		if err := rows.Scan(&row.procedure, &row.param, &row.paramType, &row.maxLength, &row.isOutput); err != nil {
			return nil, fmt.Errorf("scan procedure catalog: %w", err)
		}
		catalog = append(catalog, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read procedure catalog: %w", err)
	}

	return group(catalog), nil
}

// group folds one row per parameter into one Procedure per name, keeping the
// order procedures first appear in. A procedure without parameters arrives as
// a single row with a NULL parameter name.
func group(catalog []catalogRow) []Procedure {
	procedures := []Procedure{}
	index := make(map[string]int)

	for _, row := range catalog {
		i, ok := index[row.procedure]
		if !ok {
			i = len(procedures)
			index[row.procedure] = i
			procedures = append(procedures, Procedure{Name: row.procedure, Params: []Parameter{}})
		}
		if !row.param.Valid || row.param.String == "" {
			continue
		}
		procedures[i].Params = append(procedures[i].Params, Parameter{
			Name:      row.param.String,
			Type:      row.paramType.String,
			MaxLength: row.maxLength.Int64,
			IsOutput:  row.isOutput.Bool,
		})
	}
	return procedures
}
