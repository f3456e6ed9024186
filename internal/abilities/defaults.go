package abilities

// NewDefaultRegistry registers the built-in abilities: file system, web and
// finish. A nil web client leaves the browsing abilities out.
func NewDefaultRegistry(ws Workspace, artifacts ArtifactRecorder, web *Web) *Registry {
	r := NewRegistry()
	r.MustRegister(
		NewListFilesAbility(ws),
		NewReadFileAbility(ws),
		NewWriteFileAbility(ws, artifacts),
		NewFinishAbility(),
	)
	if web != nil {
		r.MustRegister(
			NewBrowseWebAbility(web),
			NewSearchWebAbility(web),
			NewScrapeWebAbility(web),
		)
	}
	return r
}
