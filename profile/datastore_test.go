package profile

import (
	"os"
	"testing"
)

var testConn = os.Getenv("MACFORGE_POSTGRES_TEST_CONN")

func datastore(t *testing.T) Datastore {
	t.Helper()
	if testConn == "" {
		t.Skip("set MACFORGE_POSTGRES_TEST_CONN to run datastore tests")
	}
	ds, err := NewDB("postgres", testConn, Debug())
	if err != nil {
		t.Fatal(err)
	}
	return ds
}

func testProfile(identifier string) *Profile {
	p := New("Acme Baseline", identifier, "Acme Inc")
	pl := NewPayload(TypeWiFi, identifier, "corp-wifi")
	pl.Settings[KeySSID] = TextValue("Corp")
	pl.Settings[KeySecurityType] = TextValue("WPA2")
	pl.Settings[KeyPassword] = TextValue("hunter2")
	p.AddPayload(pl)
	return p
}

func TestSaveProfileUpsert(t *testing.T) {
	ds := datastore(t)
	defer ds.DeleteProfile("com.acme.test-upsert")

	p := testProfile("com.acme.test-upsert")
	if _, err := ds.SaveProfile(p); err != nil {
		t.Fatal(err)
	}

	// saving again under the same identifier updates in place
	p.Name = "Acme Baseline v2"
	if _, err := ds.SaveProfile(p); err != nil {
		t.Fatal(err)
	}

	got, err := ds.ProfileByIdentifier("com.acme.test-upsert")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Acme Baseline v2" {
		t.Errorf("name after upsert: got %q", got.Name)
	}
	if len(got.Payloads) != 1 {
		t.Fatalf("payload count: got %d, want 1", len(got.Payloads))
	}
	if got.Payloads[0].Settings.Text(KeySSID) != "Corp" {
		t.Errorf("SSID after round trip: got %q", got.Payloads[0].Settings.Text(KeySSID))
	}
}

func TestProfileByIdentifierNotFound(t *testing.T) {
	ds := datastore(t)
	_, err := ds.ProfileByIdentifier("com.acme.does-not-exist")
	if err != ErrNotFound {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestDeleteProfile(t *testing.T) {
	ds := datastore(t)

	p := testProfile("com.acme.test-delete")
	if _, err := ds.SaveProfile(p); err != nil {
		t.Fatal(err)
	}
	if err := ds.DeleteProfile("com.acme.test-delete"); err != nil {
		t.Fatal(err)
	}
	if err := ds.DeleteProfile("com.acme.test-delete"); err != ErrNotFound {
		t.Errorf("second delete: got %v, want ErrNotFound", err)
	}
}
