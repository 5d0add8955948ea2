package content

import "testing"

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"book", Book, false},
		{"video", Video, false},
		{"Video", Video, false},
		{" book ", Book, false},
		{"music", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseCategory(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseCategory(%q) expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCategory(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseCategory(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCategoryDir(t *testing.T) {
	if Book.Dir() != "books" {
		t.Errorf("Book.Dir() = %q, want 'books'", Book.Dir())
	}
	if Video.Dir() != "videos" {
		t.Errorf("Video.Dir() = %q, want 'videos'", Video.Dir())
	}
}

func TestItemValidate(t *testing.T) {
	valid := Item{Name: "a.pdf", Category: Book, URL: "http://example.com/a.pdf"}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid item rejected: %v", err)
	}

	invalid := []Item{
		{Name: "", Category: Book, URL: "http://example.com"},
		{Name: "a.pdf", Category: Book, URL: ""},
		{Name: "../escape.pdf", Category: Book, URL: "http://example.com"},
		{Name: "dir/a.pdf", Category: Book, URL: "http://example.com"},
		{Name: "..", Category: Book, URL: "http://example.com"},
	}
	for _, item := range invalid {
		if err := item.Validate(); err == nil {
			t.Errorf("item %+v should be invalid", item)
		}
	}
}

func TestActionString(t *testing.T) {
	if ActionFetch.String() != "fetch" {
		t.Errorf("ActionFetch.String() = %q", ActionFetch.String())
	}
	if ActionSkipExists.String() != "skip-exists" {
		t.Errorf("ActionSkipExists.String() = %q", ActionSkipExists.String())
	}
	if ActionSkipDeleted.String() != "skip-deleted" {
		t.Errorf("ActionSkipDeleted.String() = %q", ActionSkipDeleted.String())
	}
}
