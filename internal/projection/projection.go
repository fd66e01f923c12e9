// Package projection implements the pure function that turns a
// (ClusterSecret, target namespace) pair into a desired child Secret
// descriptor (§4.2).
package projection

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	clustersecretv1alpha1 "github.com/giantswarm/clustersecret-operator/api/v1alpha1"
	"github.com/giantswarm/clustersecret-operator/internal/config"
)

// SourceReader is satisfied by sigs.k8s.io/controller-runtime/pkg/client.Reader
// (and therefore by any controller-runtime client.Client); kept as a named
// type so tests can pass a narrower fake.
type SourceReader = client.Reader

// SkipReason explains why a ClusterSecret could not be projected into a
// given namespace right now.
type SkipReason string

const (
	// SkipInvalidSpec means both Data and FromSecret are set, or neither is.
	SkipInvalidSpec SkipReason = "invalid-spec"

	// SkipSourceNotFound means the FromSecret reference does not resolve.
	SkipSourceNotFound SkipReason = "source-secret-not-found"
)

// SkipError is returned by Project when projection cannot proceed for a
// reason other than an API failure: an invalid spec (permanent until the
// spec changes) or a missing fromSecret source (benign, re-drivable).
type SkipError struct {
	Reason SkipReason
	Err    error
}

func (e *SkipError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return string(e.Reason)
}

func (e *SkipError) Unwrap() error { return e.Err }

// Project computes the desired child Secret for cs in the given target
// namespace, or a *SkipError explaining why projection was skipped.
func Project(ctx context.Context, reader SourceReader, cfg config.Config, cs *clustersecretv1alpha1.ClusterSecret, targetNamespace string) (*corev1.Secret, error) {
	rawData, err := resolveData(ctx, reader, cs)
	if err != nil {
		return nil, err
	}

	secretType := corev1.SecretType(cs.Spec.Type)
	if secretType == "" {
		secretType = corev1.SecretTypeOpaque
	}

	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:        cs.Name,
			Namespace:   targetNamespace,
			Labels:      buildLabels(cfg, cs),
			Annotations: buildAnnotations(cfg, cs),
			OwnerReferences: []metav1.OwnerReference{
				OwnerReference(cs),
			},
		},
		Type: secretType,
		Data: rawData,
	}, nil
}

// OwnerReference builds the owner reference every child Secret carries,
// per the observable contract in spec §6.
func OwnerReference(cs *clustersecretv1alpha1.ClusterSecret) metav1.OwnerReference {
	blockOwnerDeletion := true
	controller := true
	return metav1.OwnerReference{
		APIVersion:         cs.APIVersion,
		Kind:               config.OwnerKind,
		Name:               cs.Name,
		UID:                cs.UID,
		Controller:         &controller,
		BlockOwnerDeletion: &blockOwnerDeletion,
	}
}

func resolveData(ctx context.Context, reader SourceReader, cs *clustersecretv1alpha1.ClusterSecret) (map[string][]byte, error) {
	hasData := cs.Spec.Data != nil
	hasFromSecret := cs.Spec.FromSecret != nil

	switch {
	case hasData && hasFromSecret:
		return nil, &SkipError{Reason: SkipInvalidSpec, Err: fmt.Errorf("spec.data and spec.fromSecret are mutually exclusive")}
	case hasData:
		return cs.Spec.Data, nil
	case hasFromSecret:
		return resolveFromSecret(ctx, reader, cs.Spec.FromSecret)
	default:
		return nil, &SkipError{Reason: SkipInvalidSpec, Err: fmt.Errorf("neither spec.data nor spec.fromSecret is set")}
	}
}

func resolveFromSecret(ctx context.Context, reader SourceReader, ref *clustersecretv1alpha1.SecretReference) (map[string][]byte, error) {
	var source corev1.Secret
	key := types.NamespacedName{Namespace: ref.Namespace, Name: ref.Name}
	if err := reader.Get(ctx, key, &source); err != nil {
		if apierrors.IsNotFound(err) {
			return nil, &SkipError{Reason: SkipSourceNotFound, Err: err}
		}
		return nil, fmt.Errorf("reading source secret %s/%s: %w", ref.Namespace, ref.Name, err)
	}

	if len(ref.Keys) == 0 {
		return source.Data, nil
	}

	filtered := make(map[string][]byte, len(ref.Keys))
	for _, k := range ref.Keys {
		if v, ok := source.Data[k]; ok {
			filtered[k] = v
		}
		// Keys absent from the source are silently dropped (§4.2 step 1,
		// original_source/src/csHelper.py's behavior).
	}
	return filtered, nil
}

// filter retains every key of src that does not start with any listed
// prefix, always including base first (never filtered).
func filter(base map[string]string, src map[string]string, blockedPrefixes []string) map[string]string {
	out := make(map[string]string, len(base)+len(src))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range src {
		if _, exists := out[k]; exists {
			continue
		}
		if hasAnyPrefix(k, blockedPrefixes) {
			continue
		}
		out[k] = v
	}
	return out
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if len(s) >= len(p) && s[:len(p)] == p {
			return true
		}
	}
	return false
}

func buildLabels(cfg config.Config, cs *clustersecretv1alpha1.ClusterSecret) map[string]string {
	base := map[string]string{config.ClusterSecretLabel: "true"}
	return filter(base, cs.Labels, cfg.BlockedLabels)
}

func buildAnnotations(cfg config.Config, cs *clustersecretv1alpha1.ClusterSecret) map[string]string {
	base := map[string]string{config.VersionAnnotation: cfg.Version}
	return filter(base, cs.Annotations, cfg.BlockedAnnotations)
}
