package controller

import (
	"context"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log"

	clustersecretv1alpha1 "github.com/giantswarm/clustersecret-operator/api/v1alpha1"
)

// ClusterSecretReconciler adapts ClusterSecret watch events into the
// create/resume, selector-change, and payload-change handler families of
// §4.5. It is a thin dispatch layer: the actual work lives on Reconciler.
type ClusterSecretReconciler struct {
	*Reconciler
}

// +kubebuilder:rbac:groups=clustersecret.io,resources=clustersecrets,verbs=get;list;watch;update;patch
// +kubebuilder:rbac:groups=clustersecret.io,resources=clustersecrets/status,verbs=get;update;patch
// +kubebuilder:rbac:groups="",resources=namespaces,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=secrets,verbs=get;list;watch;create;update;patch;delete

// Reconcile handles a ClusterSecret event.
func (r *ClusterSecretReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := log.FromContext(ctx)

	var cs clustersecretv1alpha1.ClusterSecret
	if err := r.Get(ctx, req.NamespacedName, &cs); err != nil {
		if apierrors.IsNotFound(err) {
			// CS deleted: forget it. Children are reclaimed by owner-reference
			// GC (§4.5 "CS deleted").
			if entry, ok := r.findCacheEntryByName(req.Name); ok {
				r.ForgetClusterSecret(entry.UID)
				logger.Info("forgot deleted clustersecret", "clustersecret", req.Name)
			}
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	if err := r.SyncClusterSecret(ctx, &cs); err != nil {
		return ctrl.Result{}, err
	}
	return ctrl.Result{}, nil
}

// SetupWithManager registers the ClusterSecret controller.
func (r *ClusterSecretReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&clustersecretv1alpha1.ClusterSecret{}).
		Complete(r)
}
