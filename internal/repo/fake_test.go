package repo

import "testing"

func chain() *FakeRepo {
	return NewFakeRepo(
		&Commit{Hash: "c1", Message: "add a and b", Time: 1, Files: map[string]string{"a.yml": "A1", "b.yml": "B1"}},
		&Commit{Hash: "c2", Message: "change a", Time: 2, Files: map[string]string{"a.yml": "A2", "b.yml": "B1"}},
	)
}

func TestFakeRepoHeadCommitHash(t *testing.T) {
	fr := chain()
	h, err := fr.HeadCommitHash()
	if err != nil {
		t.Fatal(err)
	}
	if h != "c2" {
		t.Errorf("HeadCommitHash = %s, want c2", h)
	}
}

func TestFakeRepoIsFileDirty(t *testing.T) {
	fr := chain()
	if dirty, _ := fr.IsFileDirty("a.yml"); dirty {
		t.Error("a.yml should be clean before edit")
	}
	fr.Edit("a.yml", "A2-edited")
	if dirty, _ := fr.IsFileDirty("a.yml"); !dirty {
		t.Error("a.yml should be dirty after edit")
	}
}

func TestFakeRepoFindLastChangedCommit(t *testing.T) {
	fr := chain()
	hash, msg, err := fr.FindLastChangedCommit([]string{"a.yml"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if hash != "c2" || msg != "change a" {
		t.Errorf("got (%s, %q), want (c2, \"change a\")", hash, msg)
	}

	hash, _, err = fr.FindLastChangedCommit([]string{"b.yml"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if hash != "c1" {
		t.Errorf("b.yml last changed at %s, want c1", hash)
	}
}

func TestFakeRepoHeadFiles(t *testing.T) {
	fr := chain()
	files, err := fr.HeadFiles([]string{"*.yml"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Errorf("HeadFiles returned %v, want 2 entries", files)
	}
}

func TestFakeRepoRemovedFile(t *testing.T) {
	fr := chain()
	fr.Remove("b.yml")
	dirty, err := fr.IsFileDirty("b.yml")
	if err != nil {
		t.Fatal(err)
	}
	if !dirty {
		t.Error("removed tracked file should be dirty")
	}
	files, _ := fr.HeadFiles([]string{"*.yml"}, nil)
	for _, f := range files {
		if f == "b.yml" {
			t.Error("removed file should not appear in HeadFiles")
		}
	}
}
