package controller

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"

	clustersecretv1alpha1 "github.com/giantswarm/clustersecret-operator/api/v1alpha1"
)

func TestClusterSecretReconciler_ForgetsDeletedClusterSecret(t *testing.T) {
	r, _ := newReconciler(t)
	r.Cache.Put(cacheEntryFor(&clustersecretv1alpha1.ClusterSecret{ObjectMeta: metav1.ObjectMeta{Name: "db-creds", UID: "uid-1"}}, []string{"team-a"}))

	csr := &ClusterSecretReconciler{Reconciler: r}
	_, err := csr.Reconcile(context.Background(), ctrl.Request{NamespacedName: types.NamespacedName{Name: "db-creds"}})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if r.Cache.Has("uid-1") {
		t.Error("expected cache entry to be forgotten on NotFound")
	}
}

func TestClusterSecretReconciler_SyncsExistingClusterSecret(t *testing.T) {
	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "team-a"}}
	cs := &clustersecretv1alpha1.ClusterSecret{
		ObjectMeta: metav1.ObjectMeta{Name: "db-creds", UID: "uid-1"},
		Spec: clustersecretv1alpha1.ClusterSecretSpec{
			Data:           map[string][]byte{"k": []byte("v")},
			MatchNamespace: []string{"team-.*"},
		},
	}
	r, c := newReconciler(t, ns, cs)

	csr := &ClusterSecretReconciler{Reconciler: r}
	_, err := csr.Reconcile(context.Background(), ctrl.Request{NamespacedName: types.NamespacedName{Name: "db-creds"}})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	var secret corev1.Secret
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "team-a", Name: "db-creds"}, &secret); err != nil {
		t.Fatalf("expected child secret to be created: %v", err)
	}
}

func TestNamespaceReconciler_HandlesDeletedNamespace(t *testing.T) {
	cs := &clustersecretv1alpha1.ClusterSecret{
		ObjectMeta: metav1.ObjectMeta{Name: "db-creds", UID: "uid-1"},
		Spec:       clustersecretv1alpha1.ClusterSecretSpec{MatchNamespace: []string{"team-.*"}},
	}
	r, _ := newReconciler(t, cs)
	r.Cache.Put(cacheEntryFor(cs, []string{"team-a"}))

	nr := &NamespaceReconciler{Reconciler: r}
	_, err := nr.Reconcile(context.Background(), ctrl.Request{NamespacedName: types.NamespacedName{Name: "team-a"}})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	entry, _ := r.Cache.Get("uid-1")
	if len(entry.SyncedNamespaces) != 0 {
		t.Errorf("SyncedNamespaces = %v, want empty after namespace deletion", entry.SyncedNamespaces)
	}
}

func TestSecretReconciler_RecoversOwnerFromCacheOnDelete(t *testing.T) {
	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "team-a"}}
	cs := &clustersecretv1alpha1.ClusterSecret{
		ObjectMeta: metav1.ObjectMeta{Name: "db-creds", UID: "uid-1"},
		Spec: clustersecretv1alpha1.ClusterSecretSpec{
			Data:           map[string][]byte{"k": []byte("v")},
			MatchNamespace: []string{"team-.*"},
		},
	}
	r, c := newReconciler(t, ns, cs)
	r.Cache.Put(cacheEntryFor(cs, []string{"team-a"}))

	sr := &SecretReconciler{Reconciler: r}
	_, err := sr.Reconcile(context.Background(), ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "team-a", Name: "db-creds"}})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	var secret corev1.Secret
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "team-a", Name: "db-creds"}, &secret); err != nil {
		t.Fatalf("expected deleted child secret to be recreated: %v", err)
	}
}
