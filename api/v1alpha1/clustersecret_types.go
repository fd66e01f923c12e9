package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// MatchedSetsJoin governs how matchNamespace and matchLabels combine.
// +kubebuilder:validation:Enum=union;intersection
type MatchedSetsJoin string

const (
	// JoinUnion takes the union of name-matched and label-matched namespaces.
	JoinUnion MatchedSetsJoin = "union"

	// JoinIntersection takes the intersection of name-matched and label-matched namespaces.
	JoinIntersection MatchedSetsJoin = "intersection"
)

// SecretReference points at an existing Kubernetes Secret whose data should
// be projected instead of an inline payload.
type SecretReference struct {
	// Namespace is the namespace of the source Secret.
	Namespace string `json:"namespace"`

	// Name is the name of the source Secret.
	Name string `json:"name"`

	// Keys, if set, restricts propagation to this ordered list of keys.
	// Keys absent from the source Secret are silently dropped.
	// +optional
	Keys []string `json:"keys,omitempty"`
}

// ClusterSecretSpec defines the desired projection of a single logical
// secret across a set of target namespaces.
type ClusterSecretSpec struct {
	// Data is the inline payload, keyed by secret key, base64-encoded as
	// Kubernetes Secret data always is. Mutually exclusive with FromSecret.
	// +optional
	Data map[string][]byte `json:"data,omitempty"`

	// FromSecret references an existing Secret to copy data from. Mutually
	// exclusive with Data.
	// +optional
	FromSecret *SecretReference `json:"fromSecret,omitempty"`

	// Type is the Kubernetes secret type of the projected children.
	// +kubebuilder:default=Opaque
	// +optional
	Type string `json:"type,omitempty"`

	// MatchNamespace is an ordered list of regular expressions, matched the
	// way Python's re.match anchors (from the start, not required to
	// consume the whole string). Absent and empty are distinct: see the
	// selection engine's default-resolution rules.
	// +optional
	MatchNamespace []string `json:"matchNamespace,omitempty"`

	// AvoidNamespaces is an ordered list of regular expressions; matching
	// namespaces are excluded from the final selection regardless of
	// MatchNamespace/MatchLabels.
	// +optional
	AvoidNamespaces []string `json:"avoidNamespaces,omitempty"`

	// MatchLabels selects namespaces carrying every listed key/value pair.
	// +optional
	MatchLabels map[string]string `json:"matchLabels,omitempty"`

	// MatchedSetsJoin governs how MatchNamespace and MatchLabels combine.
	// +kubebuilder:default=union
	// +optional
	MatchedSetsJoin MatchedSetsJoin `json:"matchedSetsJoin,omitempty"`
}

// ClusterSecretStatus defines the observed state of a ClusterSecret.
type ClusterSecretStatus struct {
	// SyncedNamespaces lists the namespaces currently holding a reconciled
	// child Secret.
	// +optional
	SyncedNamespaces []string `json:"syncedns,omitempty"`

	// Conditions represent the latest available observations of the
	// ClusterSecret's reconciliation state.
	// +optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`

	// ObservedGeneration is the most recent generation observed by the
	// controller.
	// +optional
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope=Cluster
// +kubebuilder:printcolumn:name="Type",type=string,JSONPath=`.spec.type`
// +kubebuilder:printcolumn:name="Synced",type=integer,JSONPath=`.status.syncedns`,priority=1
// +kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.metadata.creationTimestamp`

// ClusterSecret is the Schema for the clustersecrets API. It projects a
// single logical secret into every namespace matched by its selector.
type ClusterSecret struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   ClusterSecretSpec   `json:"spec,omitempty"`
	Status ClusterSecretStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// ClusterSecretList contains a list of ClusterSecret.
type ClusterSecretList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []ClusterSecret `json:"items"`
}

func init() {
	SchemeBuilder.Register(&ClusterSecret{}, &ClusterSecretList{})
}
