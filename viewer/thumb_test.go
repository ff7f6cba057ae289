package viewer

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func TestThumbEscapedURL(t *testing.T) {
	ts, _ := newServer(t)
	origin := newOrigin(t)

	resp, err := http.Get(ts.URL + "/thumb/" + url.QueryEscape(origin.URL+"/picture.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if status := resp.StatusCode; status != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}
	if contentType := resp.Header.Get("Content-Type"); contentType != "image/jpeg" {
		t.Errorf("Content-Type returned bad value: got %#v want %#v", contentType, "image/jpeg")
	}
	if etag := resp.Header.Get("ETag"); etag == "" {
		t.Error("an ETag is expected")
	}
	if disposition := resp.Header.Get("Content-Disposition"); !strings.HasPrefix(disposition, "inline") {
		t.Errorf("Content-Disposition returned bad value: got %#v", disposition)
	}
	if origin.count("/picture.jpg") != 1 {
		t.Errorf("picture should be fetched once: got %v", origin.count("/picture.jpg"))
	}
}

func TestThumbBase64URL(t *testing.T) {
	ts, _ := newServer(t)
	origin := newOrigin(t)

	key := base64.StdEncoding.EncodeToString([]byte(origin.URL + "/picture.jpg"))
	resp, err := http.Get(ts.URL + "/thumb/" + key)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if status := resp.StatusCode; status != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}
	if contentType := resp.Header.Get("Content-Type"); contentType != "image/jpeg" {
		t.Errorf("Content-Type returned bad value: got %#v want %#v", contentType, "image/jpeg")
	}
}

func TestThumbDownloadDisposition(t *testing.T) {
	ts, _ := newServer(t)
	origin := newOrigin(t)

	resp, err := http.Get(ts.URL + "/thumb/" + url.QueryEscape(origin.URL+"/picture.jpg") + "?dl")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	disposition := resp.Header.Get("Content-Disposition")
	if disposition != "attachement; filename=picture.jpg" {
		t.Errorf("Content-Disposition returned bad value: got %#v", disposition)
	}
}

func TestThumbErrors(t *testing.T) {
	ts, _ := newServer(t)
	origin := newOrigin(t)

	tests := []struct {
		identifier string
		status     int
	}{
		// neither a URL nor base64
		{"not$base64", http.StatusBadRequest},
		// decodes to something without a scheme
		{base64.StdEncoding.EncodeToString([]byte("not a url")), http.StatusBadRequest},
		// decodes to a non-http URL
		{base64.StdEncoding.EncodeToString([]byte("file:///etc/passwd")), http.StatusBadRequest},
		// the remote end has no such picture
		{url.QueryEscape(origin.URL + "/missing.jpg"), http.StatusNotFound},
	}

	for _, test := range tests {
		resp, err := http.Get(ts.URL + "/thumb/" + test.identifier)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()

		if status := resp.StatusCode; status != test.status {
			t.Errorf("%s returned wrong status code: got %v want %v", test.identifier, status, test.status)
		}
	}
}
