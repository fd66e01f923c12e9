package project

var (
	description    = "Kubernetes operator that projects a ClusterSecret into every matching namespace."
	gitSHA         = "n/a"
	name           = "clustersecret-operator"
	source         = "https://github.com/giantswarm/clustersecret-operator"
	version        = "0.1.0"
	buildTimestamp = "n/a"
)

func Description() string {
	return description
}

func GitSHA() string {
	return gitSHA
}

func Name() string {
	return name
}

func Source() string {
	return source
}

func Version() string {
	return version
}

func BuildTimestamp() string {
	return buildTimestamp
}
