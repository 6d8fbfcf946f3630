package query

import "testing"

func BenchmarkParamsEncode(b *testing.B) {
	p := Params{
		"tienda":       []string{"R001", "R002", "R003"},
		"temporada":    "PV27",
		"familia":      "abrigos",
		"fecha_inicio": "2026-02-01",
		"fecha_fin":    "2026-08-01",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.Encode()
	}
}

func BenchmarkKeyIdentity(b *testing.B) {
	key := WithPathAndFilters("ventas", "f1", Params{
		"tienda":    []string{"R001", "R002"},
		"temporada": "PV27",
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := key.Identity(); err != nil {
			b.Fatal(err)
		}
	}
}
