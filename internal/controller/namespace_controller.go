package controller

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	ctrl "sigs.k8s.io/controller-runtime"
)

// NamespaceReconciler adapts Namespace watch events into §4.5's
// "Namespace created or re-labeled" / "Namespace deleted" handler family.
type NamespaceReconciler struct {
	*Reconciler
}

// +kubebuilder:rbac:groups="",resources=namespaces,verbs=get;list;watch

// Reconcile handles a Namespace event.
func (r *NamespaceReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	var ns corev1.Namespace
	err := r.Get(ctx, req.NamespacedName, &ns)
	if apierrors.IsNotFound(err) {
		return ctrl.Result{}, r.HandleNamespaceEvent(ctx, req.Name, nil, true)
	}
	if err != nil {
		return ctrl.Result{}, err
	}

	deleted := !ns.DeletionTimestamp.IsZero()
	return ctrl.Result{}, r.HandleNamespaceEvent(ctx, ns.Name, ns.Labels, deleted)
}

// SetupWithManager registers the Namespace controller.
func (r *NamespaceReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&corev1.Namespace{}).
		Complete(r)
}
