// Package selection implements the namespace-selection algebra: given a
// ClusterSecret spec and the cluster's namespace inventory, compute which
// namespaces the ClusterSecret projects a child Secret into (§4.1).
package selection

import (
	"regexp"
	"sync"

	"k8s.io/apimachinery/pkg/labels"

	clustersecretv1alpha1 "github.com/giantswarm/clustersecret-operator/api/v1alpha1"
)

// Namespace is the minimal namespace view the selection engine needs: its
// name and its labels.
type Namespace struct {
	Name   string
	Labels map[string]string
}

// regexCache memoizes compiled patterns across calls; selection runs on
// every namespace/secret event so recompiling the same handful of patterns
// per call would be wasteful.
var regexCache sync.Map // string -> *regexp.Regexp

func compile(pattern string) (*regexp.Regexp, error) {
	if v, ok := regexCache.Load(pattern); ok {
		return v.(*regexp.Regexp), nil
	}
	// Anchor at the start only, matching Python re.match semantics: the
	// pattern need not consume the whole string.
	re, err := regexp.Compile("^(?:" + pattern + ")")
	if err != nil {
		return nil, err
	}
	regexCache.Store(pattern, re)
	return re, nil
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		re, err := compile(p)
		if err != nil {
			// A malformed pattern matches nothing rather than aborting
			// selection for every other ClusterSecret namespace candidate.
			continue
		}
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// effectiveMatchNamespace applies the §4.1 step-2 default resolution.
func effectiveMatchNamespace(spec *clustersecretv1alpha1.ClusterSecretSpec) []string {
	if spec.MatchNamespace != nil {
		return spec.MatchNamespace
	}
	join := spec.MatchedSetsJoin
	if join == "" {
		join = clustersecretv1alpha1.JoinUnion
	}
	if len(spec.MatchLabels) > 0 && join == clustersecretv1alpha1.JoinUnion {
		return []string{}
	}
	return []string{".*"}
}

func labelsMatch(matchLabels map[string]string, nsLabels map[string]string) bool {
	if len(matchLabels) == 0 {
		return true
	}
	return labels.Set(matchLabels).AsSelector().Matches(labels.Set(nsLabels))
}

// Belongs answers the single-namespace membership query (the companion
// predicate from §4.1) without enumerating the cluster. It is the building
// block Select is defined in terms of, and is what Namespace-event handlers
// call directly.
func Belongs(spec *clustersecretv1alpha1.ClusterSecretSpec, name string, nsLabels map[string]string) bool {
	join := spec.MatchedSetsJoin
	if join == "" {
		join = clustersecretv1alpha1.JoinUnion
	}

	matchNs := effectiveMatchNamespace(spec)
	nameMatched := matchesAny(matchNs, name)
	labelMatched := labelsMatch(spec.MatchLabels, nsLabels)

	var matched bool
	switch join {
	case clustersecretv1alpha1.JoinIntersection:
		matched = nameMatched && labelMatched
	default: // union
		if len(spec.MatchLabels) > 0 {
			matched = nameMatched || labelMatched
		} else {
			matched = nameMatched
		}
	}

	if matched && matchesAny(spec.AvoidNamespaces, name) {
		matched = false
	}
	return matched
}

// Select computes the full matched namespace set for spec against the given
// namespace inventory (§4.1). Results are stable under reordering of the
// spec's selector lists and duplicate namespace entries are ignored.
func Select(spec *clustersecretv1alpha1.ClusterSecretSpec, namespaces []Namespace) []string {
	seen := make(map[string]bool, len(namespaces))
	var matched []string
	for _, ns := range namespaces {
		if seen[ns.Name] {
			continue
		}
		seen[ns.Name] = true
		if Belongs(spec, ns.Name, ns.Labels) {
			matched = append(matched, ns.Name)
		}
	}
	return matched
}
