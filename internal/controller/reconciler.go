// Package controller wires the four event-handler families and the
// startup reconciler described in §4.5 to the selection, projection, sync,
// and cache engines. Each watched-kind reconciler is a thin adapter: the
// shared logic lives on Reconciler, a single type owning the Cache, so no
// global mutable singleton is needed beyond configuration (§9).
package controller

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	clustersecretv1alpha1 "github.com/giantswarm/clustersecret-operator/api/v1alpha1"
	"github.com/giantswarm/clustersecret-operator/internal/cache"
	"github.com/giantswarm/clustersecret-operator/internal/config"
	"github.com/giantswarm/clustersecret-operator/internal/projection"
	"github.com/giantswarm/clustersecret-operator/internal/selection"
	"github.com/giantswarm/clustersecret-operator/internal/status"
	syncexec "github.com/giantswarm/clustersecret-operator/internal/sync"
)

// Reconciler owns the process-wide cache and the engines it drives. It is
// not itself a controller-runtime Reconciler; ClusterSecretReconciler,
// NamespaceReconciler, and SecretReconciler each embed one and adapt their
// watched kind's events into calls on it.
type Reconciler struct {
	client.Client
	Cache    cache.Cache
	Config   config.Config
	Recorder record.EventRecorder
	Executor *syncexec.Executor
}

// NewReconciler builds a Reconciler with a fresh Executor bound to c.
func NewReconciler(c client.Client, cfg config.Config, recorder record.EventRecorder) *Reconciler {
	return &Reconciler{
		Client:   c,
		Cache:    cache.New(),
		Config:   cfg,
		Recorder: recorder,
		Executor: syncexec.NewExecutor(c, cfg),
	}
}

// listNamespaces returns the full (name, labels) inventory the selection
// engine needs.
func (r *Reconciler) listNamespaces(ctx context.Context) ([]selection.Namespace, error) {
	var nsList corev1.NamespaceList
	if err := r.List(ctx, &nsList); err != nil {
		return nil, fmt.Errorf("listing namespaces: %w", err)
	}
	out := make([]selection.Namespace, 0, len(nsList.Items))
	for _, ns := range nsList.Items {
		if !ns.DeletionTimestamp.IsZero() {
			continue
		}
		out = append(out, selection.Namespace{Name: ns.Name, Labels: ns.Labels})
	}
	return out, nil
}

// findCacheEntryByName looks up a cache entry by ClusterSecret name. The
// cache is keyed by UID (§4.4), so this is a linear scan over the cached
// set; fine at the scale this controller operates at, and the only place
// we need name-based lookup (handling a delete event, where the UID is no
// longer resolvable from the API).
func (r *Reconciler) findCacheEntryByName(name string) (cache.Entry, bool) {
	for _, e := range r.Cache.IterateAll() {
		if e.Name == name {
			return e, true
		}
	}
	return cache.Entry{}, false
}

// SyncClusterSecret is the single entry point for "fully reconcile this
// ClusterSecret against current cluster state": compute the matched
// namespace set, sync each matched namespace, tear down namespaces no
// longer matched, refresh the cache entry, and patch status. It backs the
// create/resume handler, the selector- and payload-change handlers (both
// converge through the same idempotent path -- an unchanged namespace
// produces zero API writes, satisfying §8's idempotence property), and the
// startup reconciler (§4.5's "Startup" bullet).
func (r *Reconciler) SyncClusterSecret(ctx context.Context, cs *clustersecretv1alpha1.ClusterSecret) error {
	logger := log.FromContext(ctx)

	if err := config.ValidateName(cs.Name); err != nil {
		logger.Error(err, "invalid ClusterSecret name", "clustersecret", cs.Name)
		if serr := status.PatchError(ctx, r.Client, cs, "InvalidName", err); serr != nil {
			logger.Error(serr, "failed to patch clustersecret status", "clustersecret", cs.Name)
		}
		return nil // permanent validation failure; not retried until spec changes
	}

	previous, hadEntry := r.Cache.Get(cs.UID)
	var previousSynced []string
	if hadEntry {
		previousSynced = previous.SyncedNamespaces
	}

	namespaces, err := r.listNamespaces(ctx)
	if err != nil {
		if serr := status.PatchError(ctx, r.Client, cs, "NamespaceListFailed", err); serr != nil {
			logger.Error(serr, "failed to patch clustersecret status", "clustersecret", cs.Name)
		}
		return err
	}

	matched := selection.Select(&cs.Spec, namespaces)
	matchedSet := toSet(matched)

	var synced []string
	for _, ns := range matched {
		result, err := r.syncOne(ctx, cs, ns)
		if err != nil {
			logger.Error(err, "failed to sync child secret", "clustersecret", cs.Name, "namespace", ns)
			r.Recorder.Event(cs, corev1.EventTypeWarning, "SyncFailed", fmt.Sprintf("namespace %s: %v", ns, err))
			continue
		}
		if result == syncexec.ResultNamespaceGone || result == syncexec.ResultSkippedProjection || result == syncexec.ResultSkippedForeign {
			continue
		}
		synced = append(synced, ns)
		if result == syncexec.ResultCreated {
			r.Recorder.Event(cs, corev1.EventTypeNormal, "Created", fmt.Sprintf("created child secret in namespace %s", ns))
		}
	}

	for _, ns := range previousSynced {
		if matchedSet[ns] {
			continue
		}
		if _, err := r.Executor.DeleteOwned(ctx, ns, cs.Name); err != nil {
			logger.Error(err, "failed to delete child secret from un-matched namespace", "clustersecret", cs.Name, "namespace", ns)
			r.Recorder.Event(cs, corev1.EventTypeWarning, "DeleteFailed", fmt.Sprintf("namespace %s: %v", ns, err))
			continue
		}
		r.Recorder.Event(cs, corev1.EventTypeNormal, "Removed", fmt.Sprintf("removed child secret from un-matched namespace %s", ns))
	}

	r.Cache.Put(cache.Entry{
		UID:              cs.UID,
		Name:             cs.Name,
		Body:             cs.DeepCopy(),
		SyncedNamespaces: synced,
	})

	if err := status.Patch(ctx, r.Client, cs, synced); err != nil {
		logger.Error(err, "failed to patch clustersecret status", "clustersecret", cs.Name)
	}

	return nil
}

// syncOne projects and syncs cs into a single namespace. A skipped
// projection is reported as ResultSkippedProjection rather than an error:
// callers must not record the namespace as synced (§3.2, §8 property #2).
func (r *Reconciler) syncOne(ctx context.Context, cs *clustersecretv1alpha1.ClusterSecret, namespace string) (syncexec.Result, error) {
	desired, err := projection.Project(ctx, r.Client, r.Config, cs, namespace)
	if err != nil {
		var skip *projection.SkipError
		if ok := asSkipError(err, &skip); ok {
			logger := log.FromContext(ctx)
			if skip.Reason == projection.SkipInvalidSpec {
				// A malformed spec is a permanent validation failure (§7),
				// distinct from the benign, re-drivable not-found case below.
				logger.Error(skip, "skipping projection: invalid spec", "clustersecret", cs.Name, "namespace", namespace)
			} else {
				logger.Info("skipping projection", "clustersecret", cs.Name, "namespace", namespace, "reason", skip.Reason)
			}
			return syncexec.ResultSkippedProjection, nil
		}
		return "", err
	}
	return r.Executor.CreateOrUpdate(ctx, cs, desired)
}

func asSkipError(err error, target **projection.SkipError) bool {
	se, ok := err.(*projection.SkipError)
	if ok {
		*target = se
	}
	return ok
}

// ForgetClusterSecret removes cs from the cache without issuing any
// explicit child-delete calls; owner-reference GC reclaims children (§4.5
// "CS deleted").
func (r *Reconciler) ForgetClusterSecret(uid types.UID) {
	r.Cache.Delete(uid)
}

// HandleNamespaceEvent evaluates every cached ClusterSecret's membership
// predicate against a single namespace, creating/deleting children as
// needed without re-enumerating the cluster (§4.5 "Namespace created or
// re-labeled" / "Namespace deleted").
func (r *Reconciler) HandleNamespaceEvent(ctx context.Context, nsName string, nsLabels map[string]string, deleted bool) error {
	logger := log.FromContext(ctx)

	for _, entry := range r.Cache.IterateAll() {
		wasSynced := contains(entry.SyncedNamespaces, nsName)
		isMatch := !deleted && selection.Belongs(&entry.Body.Spec, nsName, nsLabels)

		switch {
		case isMatch && !wasSynced:
			result, err := r.syncOne(ctx, entry.Body, nsName)
			if err != nil {
				logger.Error(err, "failed to sync new namespace match", "clustersecret", entry.Name, "namespace", nsName)
				continue
			}
			if result == syncexec.ResultNamespaceGone || result == syncexec.ResultSkippedProjection || result == syncexec.ResultSkippedForeign {
				continue
			}
			entry.SyncedNamespaces = append(append([]string(nil), entry.SyncedNamespaces...), nsName)
		case !isMatch && wasSynced:
			if !deleted {
				if _, err := r.Executor.DeleteOwned(ctx, nsName, entry.Name); err != nil {
					logger.Error(err, "failed to delete child secret from un-matched namespace", "clustersecret", entry.Name, "namespace", nsName)
					continue
				}
			}
			// Deleted namespaces need no remote delete call: children vanish
			// with the namespace (§3.3).
			entry.SyncedNamespaces = remove(entry.SyncedNamespaces, nsName)
		default:
			continue
		}

		r.Cache.Put(entry)
		if err := status.Patch(ctx, r.Client, entry.Body, entry.SyncedNamespaces); err != nil {
			logger.Error(err, "failed to patch clustersecret status", "clustersecret", entry.Name)
		}
	}

	return nil
}

// HandleChildSecretEvent heals drift/tampering on a child Secret and
// re-projects any ClusterSecret for which this Secret is the fromSecret
// source (§4.5 "Child Secret changed or deleted").
func (r *Reconciler) HandleChildSecretEvent(ctx context.Context, secretNamespace, secretName string, ownerRefs []OwnerRef) error {
	logger := log.FromContext(ctx)

	for _, ref := range ownerRefs {
		if ref.Kind != config.OwnerKind {
			continue
		}
		entry, ok := r.Cache.Get(ref.UID)
		if !ok {
			continue
		}

		var ns corev1.Namespace
		if err := r.Get(ctx, types.NamespacedName{Name: secretNamespace}, &ns); err != nil {
			if apierrors.IsNotFound(err) {
				continue
			}
			logger.Error(err, "failed to read namespace for child secret heal", "namespace", secretNamespace)
			continue
		}
		if !ns.DeletionTimestamp.IsZero() || !selection.Belongs(&entry.Body.Spec, secretNamespace, ns.Labels) {
			continue
		}

		if _, err := r.syncOne(ctx, entry.Body, secretNamespace); err != nil {
			logger.Error(err, "failed to heal tampered child secret", "clustersecret", entry.Name, "namespace", secretNamespace)
		}
	}

	// If this Secret is the fromSecret source for any cached ClusterSecret,
	// re-project all of that ClusterSecret's children.
	for _, entry := range r.Cache.IterateAll() {
		ref := entry.Body.Spec.FromSecret
		if ref == nil || ref.Name != secretName || ref.Namespace != secretNamespace {
			continue
		}
		logger.Info("source secret changed, re-projecting dependents", "clustersecret", entry.Name)
		if err := r.SyncClusterSecret(ctx, entry.Body); err != nil {
			logger.Error(err, "failed to re-sync clustersecret after source secret change", "clustersecret", entry.Name)
		}
	}

	return nil
}

// OwnerRef is the minimal owner-reference view HandleChildSecretEvent needs.
type OwnerRef struct {
	Kind string
	UID  types.UID
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, it := range items {
		out[it] = true
	}
	return out
}

func contains(items []string, needle string) bool {
	for _, it := range items {
		if it == needle {
			return true
		}
	}
	return false
}

func remove(items []string, needle string) []string {
	out := items[:0:0]
	for _, it := range items {
		if it != needle {
			out = append(out, it)
		}
	}
	return out
}
