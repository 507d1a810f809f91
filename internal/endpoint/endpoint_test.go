package endpoint

import "testing"

func TestParseLocalPath(t *testing.T) {
	e, err := Parse("./some/dir")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if e.IsRemote() || e.Path != "./some/dir" {
		t.Errorf("got %+v", e)
	}
}

func TestParseWindowsDriveLetterIsLocal(t *testing.T) {
	e, err := Parse(`C:\Users\me\data`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if e.IsRemote() {
		t.Errorf("expected a drive-letter path to parse as local, got %+v", e)
	}
}

func TestParseRemoteWithUser(t *testing.T) {
	e, err := Parse("alice@example.com:/var/data")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !e.IsRemote() || e.User != "alice" || e.Host != "example.com" || e.Path != "/var/data" {
		t.Errorf("got %+v", e)
	}
}

func TestParseRemoteWithoutUser(t *testing.T) {
	e, err := Parse("example.com:data")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !e.IsRemote() || e.User != "" || e.Host != "example.com" || e.Path != "data" {
		t.Errorf("got %+v", e)
	}
}

func TestParseRemoteDefaultPath(t *testing.T) {
	e, err := Parse("example.com:")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if e.Path != "." {
		t.Errorf("path = %q, want \".\"", e.Path)
	}
}

func TestParseEmptyUserRejected(t *testing.T) {
	if _, err := Parse("@example.com:path"); err == nil {
		t.Fatal("expected an error for an empty username")
	}
}

func TestParseEmptyEndpointRejected(t *testing.T) {
	if _, err := Parse(""); err == nil {
		t.Fatal("expected an error for an empty endpoint")
	}
}
