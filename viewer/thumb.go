package viewer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/golang/groupcache"
	"github.com/gorilla/mux"
)

// error messages
var identifierError = "the identifier is neither a URL nor base64 encoded: %#v"
var schemeError = "only http(s) pictures can be proxied: %#v"

// resolveIdentifier turns a thumbnail identifier into the picture URL.
// Identifiers follow the image server convention, a URL-escaped http(s)
// URL or its base64 encoding. The router collapses double slashes, so
// the scheme separator is put back.
func resolveIdentifier(identifier string) (string, error) {
	identifier, err := url.QueryUnescape(identifier)
	if err != nil {
		return "", HTTPError{http.StatusBadRequest, fmt.Sprintf(identifierError, identifier)}
	}

	identifier = strings.Replace(identifier, "../", "", -1)

	if strings.HasPrefix(identifier, "http://") || strings.HasPrefix(identifier, "https://") {
		return identifier, nil
	}
	if strings.HasPrefix(identifier, "http:/") || strings.HasPrefix(identifier, "https:/") {
		return strings.Replace(identifier, ":/", "://", 1), nil
	}

	data, err := base64.StdEncoding.DecodeString(identifier)
	if err != nil {
		debug("not a base64 encoded URL either %#v", identifier)
		return "", HTTPError{http.StatusBadRequest, fmt.Sprintf(identifierError, identifier)}
	}
	return string(data), nil
}

// ThumbHandler proxies a canvas thumbnail picture.
func ThumbHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	m := NewMetrics()

	sURL, err := resolveIdentifier(vars["identifier"])
	if err != nil {
		m.ThumbnailRequestTotal.WithLabelValues("error").Inc()
		e := toHTTPError(err)
		http.Error(w, e.Error(), e.StatusCode)
		return
	}

	u, err := url.Parse(sURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		m.ThumbnailRequestTotal.WithLabelValues("error").Inc()
		e := HTTPError{http.StatusBadRequest, fmt.Sprintf(schemeError, sURL)}
		http.Error(w, e.Error(), e.StatusCode)
		return
	}

	ctx := r.Context()
	config, _ := ctx.Value(ContextKey("config")).(*Config)
	thumbnails, _ := ctx.Value(ContextKey("thumbnails")).(*groupcache.Group)

	var buffer []byte
	if thumbnails != nil {
		err = thumbnails.Get(ctx, sURL, groupcache.AllocatingByteSliceSink(&buffer))
		if err == nil {
			debug("thumbnail from cache %v", sURL)
		}
	} else {
		buffer, err = download(sURL)
	}

	if err != nil {
		m.ThumbnailRequestTotal.WithLabelValues("error").Inc()
		e := toHTTPError(err)
		http.Error(w, e.Error(), e.StatusCode)
		return
	}
	m.ThumbnailRequestTotal.WithLabelValues("ok").Inc()

	filename := path.Base(u.Path)
	if filename == "/" || filename == "." {
		filename = "thumbnail"
	}

	disposition := "inline"
	_, present := r.URL.Query()["dl"]
	if present {
		disposition = "attachement"
	}

	header := w.Header()
	header.Set("Content-Disposition", fmt.Sprintf("%s; filename=%s", disposition, filename))
	header.Set("Content-Type", http.DetectContentType(buffer))
	header.Set("ETag", getETag(sURL))
	if config != nil {
		header.Set("Cache-Control", fmt.Sprintf("max-age=%v, public", config.Cache.HTTP))
	}

	http.ServeContent(w, r, filename, time.Now(), bytes.NewReader(buffer))
}

func download(rawurl string) ([]byte, error) {
	debug("downloading %v", rawurl)

	resp, err := http.Get(rawurl)
	if err != nil {
		debug("download error: %q : %#v.", rawurl, err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, HTTPError{resp.StatusCode, rawurl}
	}

	var buf []byte
	if resp.ContentLength > 0 {
		b := bytes.NewBuffer(make([]byte, 0, resp.ContentLength))
		_, err = b.ReadFrom(resp.Body)
		buf = b.Bytes()
	} else {
		buf, err = io.ReadAll(resp.Body)
	}
	if err != nil {
		return nil, err
	}
	return buf, nil
}
