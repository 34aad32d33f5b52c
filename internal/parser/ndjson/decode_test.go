package ndjson

import (
	"errors"
	"reflect"
	"testing"

	"jsonl2parquet/internal/record"
	"jsonl2parquet/internal/schema"
)

func testSchema() *schema.Schema {
	return schema.MustNew("t", []schema.Column{
		{Name: "id", Kind: schema.Text},
		{Name: "full_name", Kind: schema.Text},
		{Name: "birth_year", Kind: schema.Int},
		{Name: "emails", Kind: schema.JSON},
		{Name: "version_status", Kind: schema.JSON},
	})
}

func TestDecode(t *testing.T) {
	t.Parallel()

	d := NewDecoder(testSchema(), Options{})

	cases := []struct {
		name    string
		line    string
		want    record.Record
		wantErr error
	}{
		{
			name: "scalars",
			line: `{"id":"1","full_name":"A","birth_year":1990}`,
			want: record.Record{"1", "A", int64(1990), nil, nil},
		},
		{
			name: "missing_fields_are_null",
			line: `{"id":"2"}`,
			want: record.Record{"2", nil, nil, nil, nil},
		},
		{
			name: "empty_object",
			line: `{}`,
			want: record.Record{nil, nil, nil, nil, nil},
		},
		{
			name: "type_mismatch_is_null",
			line: `{"id":7,"full_name":null,"birth_year":"1990"}`,
			want: record.Record{nil, nil, nil, nil, nil},
		},
		{
			name: "float_and_overflow_ints_are_null",
			line: `{"birth_year":19.5,"id":"x"}`,
			want: record.Record{"x", nil, nil, nil, nil},
		},
		{
			name: "nested_values_compacted",
			line: `{"emails": [ {"address" : "a@b.c", "type": null} ], "version_status": {"status": "new"}}`,
			want: record.Record{nil, nil, nil, `[{"address":"a@b.c","type":null}]`, `{"status":"new"}`},
		},
		{
			name: "json_column_scalar_keeps_quotes",
			line: `{"version_status":"active","emails":null}`,
			want: record.Record{nil, nil, nil, nil, `"active"`},
		},
		{
			name: "escaped_strings_unescaped_in_text",
			line: `{"full_name":"Ann \"The\" Bö"}`,
			want: record.Record{nil, `Ann "The" Bö`, nil, nil, nil},
		},
		{
			name: "unknown_keys_ignored",
			line: `{"id":"3","other":{"deep":[1,2,3]}}`,
			want: record.Record{"3", nil, nil, nil, nil},
		},
		{
			name: "duplicate_key_last_wins",
			line: `{"id":"first","id":"second"}`,
			want: record.Record{"second", nil, nil, nil, nil},
		},
		{
			name: "surrounding_whitespace",
			line: "  {\"id\":\"4\"}\r",
			want: record.Record{"4", nil, nil, nil, nil},
		},
		{name: "not_json", line: `this is not json`, wantErr: ErrInvalidJSON},
		{name: "truncated", line: `{"id":"1",`, wantErr: ErrInvalidJSON},
		{name: "blank", line: "   ", wantErr: ErrInvalidJSON},
		{name: "array", line: `[{"id":"1"}]`, wantErr: ErrNotObject},
		{name: "string", line: `"hello"`, wantErr: ErrNotObject},
		{name: "null", line: `null`, wantErr: ErrNotObject},
		{name: "number", line: `42`, wantErr: ErrNotObject},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := d.Decode([]byte(tc.line))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Decode(%q) err=%v, want %v", tc.line, err, tc.wantErr)
				}
				if got != nil {
					t.Fatalf("Decode(%q) returned record %v on error", tc.line, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode(%q) unexpected err: %v", tc.line, err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Decode(%q)=%#v, want %#v", tc.line, got, tc.want)
			}
			if err := record.Check(got, d.Schema()); err != nil {
				t.Fatalf("decoded record fails schema check: %v", err)
			}
		})
	}
}

func TestDecode_Deterministic(t *testing.T) {
	t.Parallel()

	d := NewDecoder(schema.People, Options{})
	lines := []string{
		`{"id":"1","full_name":"A","skills":["go","sql"],"linkedin_connections":500}`,
		`not json`,
		`[1,2,3]`,
		`{"id":"2","experience":[{"company":{"name":"X"},"title":{"name":"dev"}}]}`,
	}
	for _, l := range lines {
		r1, e1 := d.Decode([]byte(l))
		r2, e2 := d.Decode([]byte(l))
		if !reflect.DeepEqual(r1, r2) || e1 != e2 {
			t.Fatalf("Decode(%q) not deterministic: (%v,%v) vs (%v,%v)", l, r1, e1, r2, e2)
		}
	}
}

func TestDecode_HeaderMap(t *testing.T) {
	t.Parallel()

	d := NewDecoder(testSchema(), Options{HeaderMap: map[string]string{
		"Name":    "full_name",
		"ignored": "no_such_column",
	}})
	got, err := d.Decode([]byte(`{"Name":"Z","id":"9","ignored":"x"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := record.Record{"9", "Z", nil, nil, nil}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Decode=%#v, want %#v", got, want)
	}
}

func BenchmarkDecode_People(b *testing.B) {
	d := NewDecoder(schema.People, Options{})
	line := []byte(`{"id":"qEnOZ5Oh0poWnQ1luFBfVw_0000","full_name":"sean thorne","first_name":"sean","last_name":"thorne","gender":"male","birth_year":1990,"linkedin_url":"linkedin.com/in/seanthorne","industry":"computer software","job_title":"co-founder and chief executive officer","job_company_founded":2015,"location_country":"united states","linkedin_connections":500,"emails":[{"address":"sean@example.com","type":"professional"}],"experience":[{"company":{"name":"example"},"title":{"name":"ceo"}}],"skills":["go","sql"],"version_status":{"status":"updated"}}`)
	b.ReportAllocs()
	b.SetBytes(int64(len(line)))
	for i := 0; i < b.N; i++ {
		if _, err := d.Decode(line); err != nil {
			b.Fatal(err)
		}
	}
}
