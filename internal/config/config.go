// Package config reads the controller's environment-driven policy knobs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"
)

// Default blocked prefixes, carried from the original implementation's
// consts module.
var (
	DefaultBlockedAnnotations = []string{"kopf.zalando.org", "kubectl.kubernetes.io"}
	DefaultBlockedLabels      = []string{"app.kubernetes.io"}
)

const (
	// ClusterSecretLabel is the base label every child Secret carries.
	ClusterSecretLabel = "clustersecret.io"

	// VersionAnnotation is the base annotation every child Secret carries.
	VersionAnnotation = "clustersecret.io/version"

	// OwnerKind is the Kind recorded on a child Secret's owner reference.
	OwnerKind = "ClusterSecret"
)

// Config holds the controller's environment-driven policy knobs (§6).
type Config struct {
	// Version is emitted as the VersionAnnotation value on every child Secret.
	Version string

	// ReplaceExisting allows sync to overwrite a foreign Secret of the same name.
	ReplaceExisting bool

	// BlockedAnnotations lists annotation-key prefixes never copied onto children.
	BlockedAnnotations []string

	// BlockedLabels lists label-key prefixes never copied onto children.
	BlockedLabels []string

	// InCluster is true when KUBERNETES_SERVICE_HOST is set, switching
	// cmd/clustersecret-operator's client bootstrap from kubeconfig
	// discovery to in-cluster auth (§6).
	InCluster bool
}

// FromEnv reads the Config from the process environment, applying the
// defaults documented in §6.
func FromEnv() Config {
	cfg := Config{
		Version:            "0",
		ReplaceExisting:    false,
		BlockedAnnotations: DefaultBlockedAnnotations,
		BlockedLabels:      DefaultBlockedLabels,
	}

	if v := os.Getenv("CLUSTER_SECRET_VERSION"); v != "" {
		cfg.Version = v
	}

	if v := os.Getenv("REPLACE_EXISTING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ReplaceExisting = b
		}
	}

	if v := os.Getenv("BLOCKED_LABELS"); v != "" {
		cfg.BlockedLabels = splitPrefixList(v)
	}

	_, cfg.InCluster = os.LookupEnv("KUBERNETES_SERVICE_HOST")

	return cfg
}

func splitPrefixList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ValidateName checks that name is usable as both the ClusterSecret's and
// its children's object name.
func ValidateName(name string) error {
	if errs := validation.IsDNS1123Subdomain(name); len(errs) > 0 {
		return fmt.Errorf("invalid ClusterSecret name %q: %s", name, strings.Join(errs, "; "))
	}
	return nil
}
