// Package status implements the status reporter: writing the list of
// namespaces currently holding a child into a ClusterSecret's
// status.syncedns (§4.6).
package status

import (
	"context"
	"sort"

	apimeta "k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	clustersecretv1alpha1 "github.com/giantswarm/clustersecret-operator/api/v1alpha1"
)

// Condition types reported on ClusterSecret.status.conditions.
const (
	ConditionReady  = "Ready"
	ConditionSynced = "Synced"
)

// Patch writes syncedNamespaces into cs.status.syncedns and sets the Synced
// condition, retrying on update conflicts (§5's lost-update tolerance).
// Status writes are best-effort: a failure is logged by the caller, not
// returned as a reconciliation-stopping error, per §4.6.
func Patch(ctx context.Context, c client.Client, cs *clustersecretv1alpha1.ClusterSecret, syncedNamespaces []string) error {
	logger := log.FromContext(ctx)
	sorted := append([]string(nil), syncedNamespaces...)
	sort.Strings(sorted)

	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		var latest clustersecretv1alpha1.ClusterSecret
		if err := c.Get(ctx, client.ObjectKeyFromObject(cs), &latest); err != nil {
			return err
		}

		latest.Status.SyncedNamespaces = sorted
		latest.Status.ObservedGeneration = latest.Generation
		apimeta.SetStatusCondition(&latest.Status.Conditions, metav1.Condition{
			Type:               ConditionSynced,
			Status:             metav1.ConditionTrue,
			ObservedGeneration: latest.Generation,
			Reason:             "Reconciled",
			Message:            "status.syncedns reflects the last successful reconciliation",
		})

		if err := c.Status().Update(ctx, &latest); err != nil {
			return err
		}
		logger.V(1).Info("patched clustersecret status", "clustersecret", cs.Name, "syncedns", sorted)
		return nil
	})
}

// PatchError records a failed reconciliation attempt on the Ready
// condition. Like Patch, failures here are logged, not propagated as fatal.
func PatchError(ctx context.Context, c client.Client, cs *clustersecretv1alpha1.ClusterSecret, reason string, cause error) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		var latest clustersecretv1alpha1.ClusterSecret
		if err := c.Get(ctx, client.ObjectKeyFromObject(cs), &latest); err != nil {
			return err
		}

		apimeta.SetStatusCondition(&latest.Status.Conditions, metav1.Condition{
			Type:               ConditionReady,
			Status:             metav1.ConditionFalse,
			ObservedGeneration: latest.Generation,
			Reason:             reason,
			Message:            cause.Error(),
		})
		return c.Status().Update(ctx, &latest)
	})
}
