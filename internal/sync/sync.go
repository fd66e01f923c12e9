// Package sync implements the sync executor: idempotently applying a
// desired child Secret against live cluster state (§4.3).
package sync

import (
	"context"
	"fmt"
	"reflect"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	clustersecretv1alpha1 "github.com/giantswarm/clustersecret-operator/api/v1alpha1"
	"github.com/giantswarm/clustersecret-operator/internal/config"
)

// Result is the outcome of a createOrUpdate/delete call, mirroring the
// result enum called for by §9's design notes and exercised by §8's
// idempotence property.
type Result string

const (
	ResultCreated        Result = "created"
	ResultUpdated        Result = "updated"
	ResultUnchanged      Result = "unchanged"
	ResultReplaced       Result = "replaced"
	ResultSkippedForeign Result = "skipped-foreign"
	ResultNamespaceGone  Result = "ns-gone"
	ResultDeleted        Result = "deleted"

	// ResultSkippedProjection means projection could not produce a desired
	// Secret at all (invalid spec, or an unresolved fromSecret source), so no
	// write was attempted. Callers must treat this the same as
	// ResultNamespaceGone: the namespace did not get a child and must not be
	// recorded as synced.
	ResultSkippedProjection Result = "skipped-projection"
)

// Executor applies desired child Secrets against the live cluster.
type Executor struct {
	Client client.Client
	Config config.Config
}

// NewExecutor constructs an Executor.
func NewExecutor(c client.Client, cfg config.Config) *Executor {
	return &Executor{Client: c, Config: cfg}
}

// CreateOrUpdate implements §4.3's createOrUpdate contract: create if
// absent, replace if drifted, respect the "don't clobber foreign secrets"
// policy, and return a benign result for NotFound namespaces instead of an
// error.
func (x *Executor) CreateOrUpdate(ctx context.Context, cs *clustersecretv1alpha1.ClusterSecret, desired *corev1.Secret) (Result, error) {
	logger := log.FromContext(ctx)

	var existing corev1.Secret
	err := x.Client.Get(ctx, types.NamespacedName{Name: desired.Name, Namespace: desired.Namespace}, &existing)
	switch {
	case apierrors.IsNotFound(err):
		if nsGone, nsErr := x.namespaceGone(ctx, desired.Namespace); nsErr == nil && nsGone {
			return ResultNamespaceGone, nil
		}
		if err := x.Client.Create(ctx, desired); err != nil {
			if apierrors.IsAlreadyExists(err) {
				// Treat a 409 race as "already exists"; fall through to the
				// update path on the next reconcile.
				return ResultUnchanged, nil
			}
			return "", fmt.Errorf("creating child secret %s/%s: %w", desired.Namespace, desired.Name, err)
		}
		return ResultCreated, nil
	case err != nil:
		return "", fmt.Errorf("reading child secret %s/%s: %w", desired.Namespace, desired.Name, err)
	}

	if ownedBy(&existing, cs) {
		if matches(&existing, desired) {
			return ResultUnchanged, nil
		}
		updated := applyDesired(&existing, desired)
		if err := x.Client.Update(ctx, updated); err != nil {
			return "", fmt.Errorf("updating child secret %s/%s: %w", desired.Namespace, desired.Name, err)
		}
		return ResultUpdated, nil
	}

	// Foreign secret: not owned by this ClusterSecret.
	if !x.Config.ReplaceExisting {
		logger.Info("skipping foreign secret not owned by this ClusterSecret",
			"clustersecret", cs.Name, "namespace", desired.Namespace, "secret", desired.Name)
		return ResultSkippedForeign, nil
	}

	logger.Info("replacing foreign secret due to REPLACE_EXISTING policy",
		"clustersecret", cs.Name, "namespace", desired.Namespace, "secret", desired.Name)
	replaced := applyDesired(&existing, desired)
	if err := x.Client.Update(ctx, replaced); err != nil {
		return "", fmt.Errorf("replacing foreign secret %s/%s: %w", desired.Namespace, desired.Name, err)
	}
	return ResultReplaced, nil
}

// DeleteOwned deletes the child Secret at (namespace, name). A 404 is
// success; any other error is returned for the caller to log.
func (x *Executor) DeleteOwned(ctx context.Context, namespace, name string) (Result, error) {
	sec := &corev1.Secret{}
	sec.Name = name
	sec.Namespace = namespace
	if err := x.Client.Delete(ctx, sec); err != nil {
		if apierrors.IsNotFound(err) {
			return ResultDeleted, nil
		}
		return "", fmt.Errorf("deleting child secret %s/%s: %w", namespace, name, err)
	}
	return ResultDeleted, nil
}

func (x *Executor) namespaceGone(ctx context.Context, namespace string) (bool, error) {
	var ns corev1.Namespace
	err := x.Client.Get(ctx, types.NamespacedName{Name: namespace}, &ns)
	if apierrors.IsNotFound(err) {
		return true, nil
	}
	return false, err
}

func ownedBy(existing *corev1.Secret, cs *clustersecretv1alpha1.ClusterSecret) bool {
	refs := existing.GetOwnerReferences()
	if len(refs) == 0 {
		return false
	}
	return refs[0].Kind == config.OwnerKind && refs[0].UID == cs.UID
}

func matches(existing, desired *corev1.Secret) bool {
	if existing.Type != desired.Type {
		return false
	}
	if !reflect.DeepEqual(existing.Data, desired.Data) {
		return false
	}
	if len(existing.OwnerReferences) == 0 || existing.OwnerReferences[0].UID != desired.OwnerReferences[0].UID {
		return false
	}
	if !isSuperset(existing.Labels, desired.Labels) {
		return false
	}
	if !isSuperset(existing.Annotations, desired.Annotations) {
		return false
	}
	return true
}

func isSuperset(haystack, needles map[string]string) bool {
	for k, v := range needles {
		if haystack[k] != v {
			return false
		}
	}
	return true
}

// applyDesired mutates a copy of existing with desired's spec fields,
// preserving existing's resourceVersion so Update succeeds, and merging
// labels/annotations so the controller never clobbers keys it doesn't own
// on a foreign secret being adopted under REPLACE_EXISTING.
func applyDesired(existing, desired *corev1.Secret) *corev1.Secret {
	out := existing.DeepCopy()
	out.Type = desired.Type
	out.Data = desired.Data
	out.OwnerReferences = desired.OwnerReferences
	if out.Labels == nil {
		out.Labels = map[string]string{}
	}
	for k, v := range desired.Labels {
		out.Labels[k] = v
	}
	if out.Annotations == nil {
		out.Annotations = map[string]string{}
	}
	for k, v := range desired.Annotations {
		out.Annotations[k] = v
	}
	return out
}
