package menu

import "testing"

func TestDocLinksJoinsBaseAndCatalogue(t *testing.T) {
	t.Parallel()

	labels := EnglishLabels()
	got := DocLinks("/docs/", labels.Docs)
	want := []string{
		"/docs/index.html",
		"/docs/user-search.html",
		"/docs/user-upload.html",
		"/docs/access-control.html",
		"/docs/rest-api.html",
		"/docs/intro-project-owner.html",
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for idx, link := range got {
		if link.URL != want[idx] {
			t.Fatalf("link[%d].URL = %q, want %q", idx, link.URL, want[idx])
		}
		if link.Target != "_blank" {
			t.Fatalf("link[%d].Target = %q, want %q", idx, link.Target, "_blank")
		}
		if link.Name != labels.Docs[idx].Name {
			t.Fatalf("link[%d].Name = %q, want %q", idx, link.Name, labels.Docs[idx].Name)
		}
	}
}

func TestDocLinksStripsOnlyOneTrailingSlash(t *testing.T) {
	t.Parallel()

	got := DocLinks("https://docs.example.com/Documentation//", []DocEntry{{URL: "/index.html", Name: "i"}})
	if got[0].URL != "https://docs.example.com/Documentation//index.html" {
		t.Fatalf("URL = %q", got[0].URL)
	}
	got = DocLinks("/Documentation", []DocEntry{{URL: "/index.html", Name: "i"}})
	if got[0].URL != "/Documentation/index.html" {
		t.Fatalf("URL = %q", got[0].URL)
	}
}

func TestDocLinksEmptyBase(t *testing.T) {
	t.Parallel()

	if got := DocLinks("", EnglishLabels().Docs); len(got) != 0 {
		t.Fatalf("DocLinks(\"\") = %+v, want empty", got)
	}
}
