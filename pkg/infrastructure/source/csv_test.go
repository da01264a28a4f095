package source

import (
	"os"
	"path/filepath"
	"testing"
)

func writeList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "top-1m.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	return path
}

func drain(t *testing.T, s *CSVSource) []string {
	t.Helper()
	var domains []string
	for {
		d, ok, err := s.Next()
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if !ok {
			return domains
		}
		domains = append(domains, d)
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNext(t *testing.T) {
	tests := []struct {
		name    string
		content string
		opts    Options
		want    []string
	}{
		{
			name:    "ranked list",
			content: "1,google.com\n2,Example.COM\n3,wordpress.org\n",
			want:    []string{"google.com", "example.com", "wordpress.org"},
		},
		{
			name:    "header row skipped",
			content: "rank,Domain\n1,example.com\n",
			want:    []string{"example.com"},
		},
		{
			name:    "plain list",
			content: "example.com\n\n# comment\ntest.org\n",
			want:    []string{"example.com", "test.org"},
		},
		{
			name:    "invalid hosts skipped",
			content: "1,example.com/path\n2,\n3,ok.test\n",
			want:    []string{"ok.test"},
		},
		{
			name:    "limit",
			content: "1,a.test\n2,b.test\n3,c.test\n",
			opts:    Options{MaxDomains: 2},
			want:    []string{"a.test", "b.test"},
		},
		{
			name:    "duplicates dropped",
			content: "1,a.test\n2,A.test\n3,b.test\n4,a.test\n",
			opts:    Options{Dedup: true, BloomFilterSize: 1000, FalsePositiveRate: 1e-6},
			want:    []string{"a.test", "b.test"},
		},
		{
			name:    "duplicates kept",
			content: "1,a.test\n2,a.test\n",
			want:    []string{"a.test", "a.test"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(writeList(t, tt.content), tt.opts)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer s.Close()

			if got := drain(t, s); !equal(got, tt.want) {
				t.Errorf("domains = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextAfterExhaustion(t *testing.T) {
	s, err := Open(writeList(t, "1,a.test\n"), Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	drain(t, s)
	for i := 0; i < 3; i++ {
		if _, ok, err := s.Next(); ok || err != nil {
			t.Errorf("Next() = (%v, %v), want (false, nil)", ok, err)
		}
	}
}

func TestRewind(t *testing.T) {
	s, err := Open(writeList(t, "1,a.test\n2,b.test\n3,c.test\n"), Options{
		MaxDomains:        2,
		Dedup:             true,
		BloomFilterSize:   1000,
		FalsePositiveRate: 1e-6,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	first := drain(t, s)
	if err := s.Rewind(); err != nil {
		t.Fatalf("Rewind() error = %v", err)
	}
	second := drain(t, s)

	if !equal(first, second) {
		t.Errorf("after Rewind() = %v, want %v", second, first)
	}
	if s.Yielded() != 2 {
		t.Errorf("Yielded() = %d, want 2", s.Yielded())
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.csv"), Options{}); err == nil {
		t.Errorf("Open() error = nil, want error")
	}
}
