package config

import "testing"

func TestGetDatabaseDSN(t *testing.T) {
	custom := "custom:dsn@tcp(custom:3306)/customdb?parseTime=true"

	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "all DB variables",
			env: map[string]string{
				"DB_USER":     "testuser",
				"DB_PASSWORD": "testpass",
				"DB_HOST":     "testhost",
				"DB_PORT":     "3307",
				"DB_NAME":     "testdb",
			},
			want: "testuser:testpass@tcp(testhost:3307)/testdb?parseTime=true",
		},
		{
			name: "DB variables win over DATABASE_DSN",
			env: map[string]string{
				"DB_USER":      "testuser",
				"DB_PASSWORD":  "testpass",
				"DB_HOST":      "testhost",
				"DB_PORT":      "3307",
				"DB_NAME":      "testdb",
				"DATABASE_DSN": custom,
			},
			want: "testuser:testpass@tcp(testhost:3307)/testdb?parseTime=true",
		},
		{
			name: "DATABASE_DSN",
			env:  map[string]string{"DATABASE_DSN": custom},
			want: custom,
		},
		{
			name: "partial DB variables fall back",
			env:  map[string]string{"DB_USER": "testuser", "DB_PASSWORD": "testpass"},
			want: defaultDSN,
		},
		{
			name: "nothing set",
			want: defaultDSN,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"DB_USER", "DB_PASSWORD", "DB_HOST", "DB_PORT", "DB_NAME", "DATABASE_DSN"} {
				t.Setenv(key, tt.env[key])
			}

			if got := GetDatabaseDSN(); got != tt.want {
				t.Errorf("GetDatabaseDSN() = %v, want %v", got, tt.want)
			}
		})
	}
}
