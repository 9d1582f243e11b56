package cli

import (
	"reflect"
	"testing"
)

func TestRunNames(t *testing.T) {
	root := writeServerRoot(t, map[string]string{
		"sites-enabled/example.conf": siteConf,
	})
	factory := setupCommand(t, root, nginxExec())

	if err := runNames(nil, nil); err != nil {
		t.Fatalf("runNames: %v", err)
	}

	got := factory.Created.AllNames()
	want := []string{"example.com", "www.example.com"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AllNames() = %v, want %v", got, want)
	}
}

func TestRunNamesEmpty(t *testing.T) {
	root := writeServerRoot(t, nil)
	setupCommand(t, root, nginxExec())

	if err := runNames(nil, nil); err != nil {
		t.Fatalf("runNames: %v", err)
	}
}
