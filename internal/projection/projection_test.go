package projection

import (
	"context"
	"strings"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	clustersecretv1alpha1 "github.com/giantswarm/clustersecret-operator/api/v1alpha1"
	"github.com/giantswarm/clustersecret-operator/internal/config"
)

func newScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	if err := corev1.AddToScheme(scheme); err != nil {
		t.Fatalf("failed to add corev1 to scheme: %v", err)
	}
	if err := clustersecretv1alpha1.AddToScheme(scheme); err != nil {
		t.Fatalf("failed to add clustersecret scheme: %v", err)
	}
	return scheme
}

func TestProject_InlineData(t *testing.T) {
	cfg := config.Config{
		Version:            "7",
		BlockedAnnotations: config.DefaultBlockedAnnotations,
		BlockedLabels:      config.DefaultBlockedLabels,
	}
	cs := &clustersecretv1alpha1.ClusterSecret{
		ObjectMeta: metav1.ObjectMeta{Name: "db-creds", UID: "uid-1"},
		Spec: clustersecretv1alpha1.ClusterSecretSpec{
			Data: map[string][]byte{"password": []byte("hunter2")},
		},
	}

	c := fake.NewClientBuilder().WithScheme(newScheme(t)).Build()
	secret, err := Project(context.Background(), c, cfg, cs, "team-a")
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}

	if secret.Name != "db-creds" || secret.Namespace != "team-a" {
		t.Errorf("secret identity = %s/%s, want team-a/db-creds", secret.Namespace, secret.Name)
	}
	if string(secret.Data["password"]) != "hunter2" {
		t.Errorf("secret.Data[password] = %q, want hunter2", secret.Data["password"])
	}
	if secret.Annotations[config.VersionAnnotation] != "7" {
		t.Errorf("version annotation = %q, want 7", secret.Annotations[config.VersionAnnotation])
	}
	if secret.Labels[config.ClusterSecretLabel] != "true" {
		t.Errorf("base label missing")
	}
	if secret.OwnerReferences[0].UID != "uid-1" {
		t.Errorf("owner reference UID = %q, want uid-1", secret.OwnerReferences[0].UID)
	}
}

func TestProject_FromSecretFiltersToRequestedKeys(t *testing.T) {
	source := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "source", Namespace: "vault"},
		Data: map[string][]byte{
			"username": []byte("admin"),
			"password": []byte("hunter2"),
			"unused":   []byte("ignored"),
		},
	}
	c := fake.NewClientBuilder().WithScheme(newScheme(t)).WithObjects(source).Build()

	cs := &clustersecretv1alpha1.ClusterSecret{
		ObjectMeta: metav1.ObjectMeta{Name: "db-creds", UID: "uid-1"},
		Spec: clustersecretv1alpha1.ClusterSecretSpec{
			FromSecret: &clustersecretv1alpha1.SecretReference{
				Namespace: "vault",
				Name:      "source",
				Keys:      []string{"username", "password", "absent-key"},
			},
		},
	}

	secret, err := Project(context.Background(), c, config.Config{}, cs, "team-a")
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if len(secret.Data) != 2 {
		t.Fatalf("secret.Data = %v, want exactly username and password", secret.Data)
	}
	if _, ok := secret.Data["absent-key"]; ok {
		t.Error("expected absent-key to be silently dropped")
	}
}

func TestProject_FromSecretNotFoundIsSkip(t *testing.T) {
	c := fake.NewClientBuilder().WithScheme(newScheme(t)).Build()
	cs := &clustersecretv1alpha1.ClusterSecret{
		ObjectMeta: metav1.ObjectMeta{Name: "db-creds", UID: "uid-1"},
		Spec: clustersecretv1alpha1.ClusterSecretSpec{
			FromSecret: &clustersecretv1alpha1.SecretReference{Namespace: "vault", Name: "missing"},
		},
	}

	_, err := Project(context.Background(), c, config.Config{}, cs, "team-a")
	var skip *SkipError
	if !asSkipError(err, &skip) {
		t.Fatalf("expected SkipError, got %v", err)
	}
	if skip.Reason != SkipSourceNotFound {
		t.Errorf("skip reason = %q, want %q", skip.Reason, SkipSourceNotFound)
	}
}

func TestProject_MutualExclusivity(t *testing.T) {
	tests := []struct {
		name   string
		spec   clustersecretv1alpha1.ClusterSecretSpec
		reason SkipReason
	}{
		{
			name:   "both data and fromSecret set",
			spec:   clustersecretv1alpha1.ClusterSecretSpec{Data: map[string][]byte{"a": []byte("b")}, FromSecret: &clustersecretv1alpha1.SecretReference{Namespace: "x", Name: "y"}},
			reason: SkipInvalidSpec,
		},
		{
			name:   "neither set",
			spec:   clustersecretv1alpha1.ClusterSecretSpec{},
			reason: SkipInvalidSpec,
		},
	}

	c := fake.NewClientBuilder().WithScheme(newScheme(t)).Build()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := &clustersecretv1alpha1.ClusterSecret{
				ObjectMeta: metav1.ObjectMeta{Name: "cs", UID: "uid-1"},
				Spec:       tt.spec,
			}
			_, err := Project(context.Background(), c, config.Config{}, cs, "team-a")
			var skip *SkipError
			if !asSkipError(err, &skip) {
				t.Fatalf("expected SkipError, got %v", err)
			}
			if skip.Reason != tt.reason {
				t.Errorf("skip reason = %q, want %q", skip.Reason, tt.reason)
			}
		})
	}
}

func TestBuildLabels_BlocksPrefixedKeys(t *testing.T) {
	cfg := config.Config{BlockedLabels: []string{"app.kubernetes.io"}}
	cs := &clustersecretv1alpha1.ClusterSecret{
		ObjectMeta: metav1.ObjectMeta{
			Labels: map[string]string{
				"app.kubernetes.io/managed-by": "helm",
				"team":                         "payments",
			},
		},
	}

	labels := buildLabels(cfg, cs)
	if _, ok := labels["app.kubernetes.io/managed-by"]; ok {
		t.Error("expected blocked-prefix label to be filtered out")
	}
	if labels["team"] != "payments" {
		t.Error("expected non-blocked label to survive")
	}
	if labels[config.ClusterSecretLabel] != "true" {
		t.Error("expected base label to always be present")
	}
}

func asSkipError(err error, target **SkipError) bool {
	se, ok := err.(*SkipError)
	if ok {
		*target = se
	}
	return ok
}

func TestSkipError_ErrorString(t *testing.T) {
	e := &SkipError{Reason: SkipInvalidSpec}
	if !strings.Contains(e.Error(), string(SkipInvalidSpec)) {
		t.Errorf("Error() = %q, want it to contain %q", e.Error(), SkipInvalidSpec)
	}
}
