package pg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-openapi/inflect"

	"gatekeeper/internal/dsl"
)

// Column: строка information_schema.columns, нужная для описания сущности
type Column struct {
	Table      string
	Name       string
	DataType   string // integer, ARRAY, USER-DEFINED, ...
	UDTName    string // int4, _text, user_role, ...
	Nullable   bool
	HasDefault bool
}

const columnsQuery = `
select c.table_name, c.column_name, c.data_type, c.udt_name,
       c.is_nullable = 'YES', c.column_default is not null
from information_schema.columns c
join information_schema.tables t
  on t.table_schema = c.table_schema and t.table_name = c.table_name
where c.table_schema = coalesce(nullif($1, ''), current_schema()) and t.table_type = 'BASE TABLE'
order by c.table_name, c.ordinal_position`

// Introspect читает колонки схемы и строит описания сущностей в именовании Hasura graphql-default.
// Пустой schema: текущая схема сессии (первая в search_path). Пустой tables: все таблицы схемы по алфавиту.
func Introspect(ctx context.Context, db *sql.DB, schema string, tables []string) ([]*dsl.Entity, error) {
	rows, err := db.QueryContext(ctx, columnsQuery, schema)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Table, &c.Name, &c.DataType, &c.UDTName, &c.Nullable, &c.HasDefault); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return EntitiesFromColumns(cols, tables)
}

// EntitiesFromColumns группирует колонки по таблицам (порядок колонок сохраняется).
// Если tables задан, порядок сущностей совпадает с его порядком, и каждая таблица обязана существовать.
func EntitiesFromColumns(cols []Column, tables []string) ([]*dsl.Entity, error) {
	byTable := map[string][]Column{}
	var order []string
	for _, c := range cols {
		if _, ok := byTable[c.Table]; !ok {
			order = append(order, c.Table)
		}
		byTable[c.Table] = append(byTable[c.Table], c)
	}

	if len(tables) > 0 {
		order = order[:0]
		for _, t := range tables {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if _, ok := byTable[t]; !ok {
				return nil, fmt.Errorf("table %q not found", t)
			}
			order = append(order, t)
		}
	}

	out := make([]*dsl.Entity, 0, len(order))
	for _, t := range order {
		e, err := entityFromTable(t, byTable[t])
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", t, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func entityFromTable(table string, cols []Column) (*dsl.Entity, error) {
	singular, plural := EntityNames(table)

	fields := make([]string, 0, len(cols))
	for _, c := range cols {
		name := inflect.CamelizeDownFirst(c.Name)
		typ := graphQLType(c)
		// id всегда non-null: default gen_random_uuid() не делает его nullable в выборке
		if name == "id" || (!c.Nullable && !c.HasDefault) {
			typ += "!"
		}
		fields = append(fields, name+":"+typ)
	}
	return dsl.NewEntity(singular, plural, fields...)
}

// EntityNames: user_profiles -> UserProfile, UserProfiles
func EntityNames(table string) (singular, plural string) {
	plural = inflect.Camelize(table)
	singular = inflect.Camelize(inflect.Singularize(table))
	return singular, plural
}

// scalars: udt_name -> скаляр Hasura; отсутствующие в карте типы отдаются под своим udt-именем
var scalars = map[string]string{
	"int4":    "Int",
	"serial":  "Int",
	"int2":    "smallint",
	"int8":    "bigint",
	"text":    "String",
	"varchar": "String",
	"bpchar":  "String",
	"citext":  "String",
	"name":    "String",
	"bool":    "Boolean",
	"float4":  "float4",
	"float8":  "float8",
	"numeric": "numeric",
}

func graphQLType(c Column) string {
	udt := c.UDTName
	if strings.EqualFold(c.DataType, "ARRAY") {
		// у массивов udt_name с префиксом "_": _text -> [String!]
		return "[" + scalarOf(strings.TrimPrefix(udt, "_")) + "!]"
	}
	return scalarOf(udt)
}

func scalarOf(udt string) string {
	if s, ok := scalars[strings.ToLower(udt)]; ok {
		return s
	}
	// uuid, date, timestamptz, jsonb и пользовательские enum: как есть
	return udt
}
