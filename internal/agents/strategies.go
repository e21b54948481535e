package agents

import (
	"go.uber.org/zap"

	"github.com/openscout/orchestrator/internal/retry"
	"github.com/openscout/orchestrator/internal/searxng"
)

// Strategy names. The general agent anchors balanced perspective and is the
// only execution-critical one.
const (
	NameGeneral       = "general"
	NameAcademic      = "academic"
	NameComputational = "computational"
	NameVideo         = "video"
	NameCommunity     = "community"
)

// Deps are the shared collaborators every agent executes through.
type Deps struct {
	Searcher Searcher
	Retrier  *retry.Handler
	Fallback FallbackStrategy
	Logger   *zap.Logger
}

func (d *Deps) defaults() {
	if d.Fallback == nil {
		d.Fallback = HeuristicFallback{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
}

func defaultFilter() ResultFilter {
	return ResultFilter{
		MinSnippetLen: 40,
		MinRelevance:  0.05,
		RequireTitle:  true,
	}
}

// NewGeneralAgent builds the execution-critical balanced-perspective agent.
func NewGeneralAgent(deps Deps) Agent {
	deps.defaults()
	return &searchAgent{
		strategy: strategy{
			name:      NameGeneral,
			critical:  true,
			optimizer: generalOptimizer,
			searchOpts: searxng.Options{
				Categories: []string{"general"},
			},
			filter:     defaultFilter(),
			maxResults: 15,
		},
		searcher: deps.Searcher,
		retrier:  deps.Retrier,
		fallback: deps.Fallback,
		logger:   deps.Logger,
	}
}

// NewAcademicAgent targets scholarly sources.
func NewAcademicAgent(deps Deps) Agent {
	deps.defaults()
	f := defaultFilter()
	f.MinSnippetLen = 60
	return &searchAgent{
		strategy: strategy{
			name:      NameAcademic,
			optimizer: academicOptimizer,
			searchOpts: searxng.Options{
				Categories: []string{"science"},
				Engines:    []string{"google scholar", "semantic scholar", "arxiv", "pubmed"},
			},
			filter:     f,
			maxResults: 10,
		},
		searcher: deps.Searcher,
		retrier:  deps.Retrier,
		fallback: deps.Fallback,
		logger:   deps.Logger,
	}
}

// NewComputationalAgent targets formulas, models and technical data.
func NewComputationalAgent(deps Deps) Agent {
	deps.defaults()
	return &searchAgent{
		strategy: strategy{
			name:      NameComputational,
			optimizer: computationalOptimizer,
			searchOpts: searxng.Options{
				Categories: []string{"science", "it"},
				Engines:    []string{"wolframalpha", "duckduckgo", "stackexchange"},
			},
			filter:     defaultFilter(),
			maxResults: 10,
		},
		searcher: deps.Searcher,
		retrier:  deps.Retrier,
		fallback: deps.Fallback,
		logger:   deps.Logger,
	}
}

// NewVideoAgent targets educational video content.
func NewVideoAgent(deps Deps) Agent {
	deps.defaults()
	f := defaultFilter()
	f.MinSnippetLen = 20 // video descriptions run short
	return &searchAgent{
		strategy: strategy{
			name:      NameVideo,
			optimizer: videoOptimizer,
			searchOpts: searxng.Options{
				Categories: []string{"videos"},
				Engines:    []string{"youtube", "vimeo"},
			},
			filter:     f,
			maxResults: 8,
		},
		searcher: deps.Searcher,
		retrier:  deps.Retrier,
		fallback: deps.Fallback,
		logger:   deps.Logger,
	}
}

// NewCommunityAgent targets discussions and practitioner experience.
func NewCommunityAgent(deps Deps) Agent {
	deps.defaults()
	f := defaultFilter()
	f.MinSnippetLen = 30
	return &searchAgent{
		strategy: strategy{
			name:      NameCommunity,
			optimizer: communityOptimizer,
			searchOpts: searxng.Options{
				Categories: []string{"social media", "general"},
				Engines:    []string{"reddit", "duckduckgo"},
			},
			filter:     f,
			maxResults: 8,
		},
		searcher: deps.Searcher,
		retrier:  deps.Retrier,
		fallback: deps.Fallback,
		logger:   deps.Logger,
	}
}

// NewDefaultSet builds the standard five-agent roster.
func NewDefaultSet(deps Deps) []Agent {
	return []Agent{
		NewGeneralAgent(deps),
		NewAcademicAgent(deps),
		NewComputationalAgent(deps),
		NewVideoAgent(deps),
		NewCommunityAgent(deps),
	}
}
