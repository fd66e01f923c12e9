package controller

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/giantswarm/clustersecret-operator/internal/config"
)

// SecretReconciler adapts Secret watch events into §4.5's "Child Secret
// changed or deleted" handler family, which both heals drift/tampering on
// owned children and re-projects dependents of a changed fromSecret
// source.
type SecretReconciler struct {
	*Reconciler
}

// +kubebuilder:rbac:groups="",resources=secrets,verbs=get;list;watch;create;update;patch;delete

// Reconcile handles a Secret event.
func (r *SecretReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	var secret corev1.Secret
	err := r.Get(ctx, req.NamespacedName, &secret)
	if apierrors.IsNotFound(err) {
		// The child Secret's name always equals its owning ClusterSecret's
		// name (§4.2), so a cache lookup by that name recovers the owner
		// reference the deleted object can no longer supply.
		var refs []OwnerRef
		if entry, ok := r.findCacheEntryByName(req.Name); ok {
			refs = []OwnerRef{{Kind: config.OwnerKind, UID: entry.UID}}
		}
		return ctrl.Result{}, r.HandleChildSecretEvent(ctx, req.Namespace, req.Name, refs)
	}
	if err != nil {
		return ctrl.Result{}, err
	}

	var refs []OwnerRef
	for _, ref := range secret.OwnerReferences {
		refs = append(refs, OwnerRef{Kind: ref.Kind, UID: ref.UID})
	}
	return ctrl.Result{}, r.HandleChildSecretEvent(ctx, secret.Namespace, secret.Name, refs)
}

// SetupWithManager registers the Secret controller.
func (r *SecretReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&corev1.Secret{}).
		Complete(r)
}
