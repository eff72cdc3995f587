package sources

import (
	"github.com/funvill/cultural-archiver-sub007/internal/massimport"
)

// NewRegistry returns the registry of every built-in data source mapper.
func NewRegistry() *massimport.Registry {
	return massimport.NewRegistry(
		NewVancouverMapper(),
		NewOSMMapper(),
		NewGenericMapper(),
	)
}
