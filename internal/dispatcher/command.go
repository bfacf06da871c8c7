// Package dispatcher implements the command dispatcher (component G):
// a single asynchronous loop consuming one command channel and fanning
// results out onto the event bus, grounded on the original
// implementation's control::command_handler module, generalized from
// its split Player/System channel pair into the spec's single
// five-family tagged union.
package dispatcher

// Family tags the command's origin, mirroring spec.md §4.G's five
// command families.
type Family int

const (
	Player Family = iota
	Playlist
	Queue
	Metadata
	System
)

// Action selects which operation within a Command's Family to run.
type Action int

const (
	PlayerPlay Action = iota
	PlayerPause
	PlayerNext
	PlayerPrev
	PlayerSeek
	PlayerPlayItem
	PlayerRandomToggle

	QueueAddSong
	QueueAddPlaylist
	QueueAddAlbum
	QueueAddDirectory
	QueueLoadSong
	QueueLoadPlaylist
	QueueLoadAlbum
	QueueLoadDirectory
	QueueRemove
	QueueClear
	QueueQueryCurrent

	PlaylistSave
	PlaylistDelete
	PlaylistQuery

	MetadataRescan
	MetadataLike
	MetadataDislike

	SystemSetVolume
	SystemVolumeUp
	SystemVolumeDown
	SystemRestartPlayer
	SystemPowerOff
	SystemRestartSystem
)

// Command is the tagged union accepted by Dispatcher.Submit. Only the
// fields relevant to Family/Action are meaningful, matching the same
// convention internal/events.Event already uses for its own union.
type Command struct {
	Family Family
	Action Action

	ID         string // song/playlist/album id, directory prefix, like/dislike target
	Seconds    int    // PlayerSeek
	FullScan   bool   // MetadataRescan
	SearchTerm string // QueueQueryCurrent
	Offset     int
	Limit      int
	VolumeStep int // SystemSetVolume absolute target; ignored by VolumeUp/Down
}

func NewPlayCommand() Command          { return Command{Family: Player, Action: PlayerPlay} }
func NewPauseCommand() Command         { return Command{Family: Player, Action: PlayerPause} }
func NewNextCommand() Command          { return Command{Family: Player, Action: PlayerNext} }
func NewPrevCommand() Command          { return Command{Family: Player, Action: PlayerPrev} }
func NewSeekCommand(seconds int) Command {
	return Command{Family: Player, Action: PlayerSeek, Seconds: seconds}
}
func NewPlayItemCommand(id string) Command {
	return Command{Family: Player, Action: PlayerPlayItem, ID: id}
}
func NewRandomToggleCommand() Command { return Command{Family: Player, Action: PlayerRandomToggle} }

func NewQueueAddSongCommand(id string) Command {
	return Command{Family: Queue, Action: QueueAddSong, ID: id}
}
func NewQueueAddPlaylistCommand(id string) Command {
	return Command{Family: Queue, Action: QueueAddPlaylist, ID: id}
}
func NewQueueAddAlbumCommand(id string) Command {
	return Command{Family: Queue, Action: QueueAddAlbum, ID: id}
}
func NewQueueAddDirectoryCommand(prefix string) Command {
	return Command{Family: Queue, Action: QueueAddDirectory, ID: prefix}
}
func NewQueueLoadSongCommand(id string) Command {
	return Command{Family: Queue, Action: QueueLoadSong, ID: id}
}
func NewQueueLoadPlaylistCommand(id string) Command {
	return Command{Family: Queue, Action: QueueLoadPlaylist, ID: id}
}
func NewQueueLoadAlbumCommand(id string) Command {
	return Command{Family: Queue, Action: QueueLoadAlbum, ID: id}
}
func NewQueueLoadDirectoryCommand(prefix string) Command {
	return Command{Family: Queue, Action: QueueLoadDirectory, ID: prefix}
}
func NewQueueRemoveCommand(id string) Command {
	return Command{Family: Queue, Action: QueueRemove, ID: id}
}
func NewQueueClearCommand() Command { return Command{Family: Queue, Action: QueueClear} }
func NewQueueQueryCurrentCommand(offset, limit int, searchTerm string) Command {
	return Command{Family: Queue, Action: QueueQueryCurrent, Offset: offset, Limit: limit, SearchTerm: searchTerm}
}

func NewPlaylistSaveCommand(name string) Command {
	return Command{Family: Playlist, Action: PlaylistSave, ID: name}
}
func NewPlaylistDeleteCommand(name string) Command {
	return Command{Family: Playlist, Action: PlaylistDelete, ID: name}
}
func NewPlaylistQueryCommand() Command { return Command{Family: Playlist, Action: PlaylistQuery} }

func NewMetadataRescanCommand(fullScan bool) Command {
	return Command{Family: Metadata, Action: MetadataRescan, FullScan: fullScan}
}
func NewMetadataLikeCommand(id string) Command {
	return Command{Family: Metadata, Action: MetadataLike, ID: id}
}
func NewMetadataDislikeCommand(id string) Command {
	return Command{Family: Metadata, Action: MetadataDislike, ID: id}
}

func NewSystemSetVolumeCommand(v int) Command {
	return Command{Family: System, Action: SystemSetVolume, VolumeStep: v}
}
func NewSystemVolumeUpCommand() Command   { return Command{Family: System, Action: SystemVolumeUp} }
func NewSystemVolumeDownCommand() Command { return Command{Family: System, Action: SystemVolumeDown} }
func NewSystemRestartPlayerCommand() Command {
	return Command{Family: System, Action: SystemRestartPlayer}
}
func NewSystemPowerOffCommand() Command { return Command{Family: System, Action: SystemPowerOff} }
func NewSystemRestartSystemCommand() Command {
	return Command{Family: System, Action: SystemRestartSystem}
}
