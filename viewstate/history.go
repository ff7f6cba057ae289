package viewstate

// History is the navigation sink the codec writes into. Push records a
// new entry, Replace rewrites the current one.
type History interface {
	Push(query string)
	Replace(query string)
}

// Write serializes v into h. Pan and zoom updates replace so they do
// not flood the history; canvas navigation pushes so back and forward
// stay meaningful.
func Write(v ViewState, h History, replace bool) {
	q := v.Query()
	if replace {
		h.Replace(q)
		return
	}
	h.Push(q)
}
