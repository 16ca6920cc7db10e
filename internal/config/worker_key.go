package config

type WorkerKeyStruct struct {
	PersistLikesQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistLikesQueue: "persist_likes_queue",
}
