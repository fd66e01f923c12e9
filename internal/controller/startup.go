package controller

import (
	"context"

	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/manager"

	clustersecretv1alpha1 "github.com/giantswarm/clustersecret-operator/api/v1alpha1"
)

// StartupReconciler lists every ClusterSecret and syncs each as if freshly
// created, recovering from any events missed while the controller was down
// (§4.5 "Startup"). It is added to the manager as a Runnable, the same way
// the teacher wires its long-lived server as a manager-managed component.
type StartupReconciler struct {
	*Reconciler
}

var _ manager.Runnable = (*StartupReconciler)(nil)

// Start runs once when the manager starts its runnables. It is started
// alongside the registered controllers, not ordered before them; a
// ClusterSecret may therefore also be synced by ClusterSecretReconciler
// while this pass runs, which the idempotent sync path tolerates.
func (s *StartupReconciler) Start(ctx context.Context) error {
	logger := log.FromContext(ctx)

	var list clustersecretv1alpha1.ClusterSecretList
	if err := s.List(ctx, &list); err != nil {
		return err
	}

	logger.Info("found existing clustersecrets", "count", len(list.Items))

	for i := range list.Items {
		cs := &list.Items[i]
		if err := s.SyncClusterSecret(ctx, cs); err != nil {
			logger.Error(err, "failed to sync clustersecret at startup", "clustersecret", cs.Name)
		}
	}

	return nil
}
