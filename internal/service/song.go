package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spado/songcontest/internal/model"
	"github.com/spado/songcontest/internal/repository"
	"github.com/spado/songcontest/internal/validation"
)

var (
	ErrSubmissionsClosed = errors.New("song submissions are currently closed")
	ErrOwnSongVote       = errors.New("you cannot vote for your own song")
)

// SongInput carries the editable song metadata.
type SongInput struct {
	Title       string
	Description string
	Language    string
	Genre       string
	AIToolUsed  string
}

func (in *SongInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Language = strings.ToLower(strings.TrimSpace(in.Language))
	in.Genre = strings.TrimSpace(in.Genre)
	in.AIToolUsed = strings.TrimSpace(in.AIToolUsed)
}

func (in SongInput) validate() error {
	return validation.ValidateSongMetadata(in.Title, in.Language, in.Genre, in.AIToolUsed)
}

// SongDetail is a song page: the song, its approved comments and the
// viewer's own vote if any.
type SongDetail struct {
	Song     *model.Song      `json:"song"`
	Comments []*model.Comment `json:"comments"`
	UserVote *model.Vote      `json:"user_vote,omitempty"`
}

type Leaderboard struct {
	TopArtists []*model.ArtistStanding `json:"top_artists"`
	TopSongs   []*model.Song           `json:"top_songs"`
	MostViewed []*model.Song           `json:"most_viewed"`
}

type Dashboard struct {
	Songs []*model.Song        `json:"songs"`
	Wins  []*model.WinnerEntry `json:"wins"`
}

type SongService struct {
	songRepo     repository.SongRepository
	userRepo     repository.UserRepository
	voteRepo     repository.VoteRepository
	commentRepo  repository.CommentRepository
	winnerRepo   repository.WinnerRepository
	fileService  *FileService
	phaseService *PhaseService
	emailService *EmailService
}

func NewSongService(
	songRepo repository.SongRepository,
	userRepo repository.UserRepository,
	voteRepo repository.VoteRepository,
	commentRepo repository.CommentRepository,
	winnerRepo repository.WinnerRepository,
	fileService *FileService,
	phaseService *PhaseService,
	emailService *EmailService,
) *SongService {
	return &SongService{
		songRepo:     songRepo,
		userRepo:     userRepo,
		voteRepo:     voteRepo,
		commentRepo:  commentRepo,
		winnerRepo:   winnerRepo,
		fileService:  fileService,
		phaseService: phaseService,
		emailService: emailService,
	}
}

// Submit stores a new song with its audio and optional lyrics. Expired phases
// are advanced first so a deadline that just passed closes submissions.
func (s *SongService) Submit(ctx context.Context, user *model.User, in SongInput, audio Upload, lyrics *Upload) (*model.Song, error) {
	_, err := s.phaseService.AdvanceExpiredPhases(ctx)
	if err != nil {
		slog.Warn("phase sweep before submission failed", "error", err)
	}

	canSubmit, err := s.phaseService.CanSubmitSongs(ctx)
	if err != nil {
		return nil, err
	}
	if !canSubmit {
		return nil, ErrSubmissionsClosed
	}

	in.normalize()
	err = in.validate()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	song := &model.Song{
		ID:          uuid.New().String(),
		UserID:      user.ID,
		Title:       in.Title,
		Description: in.Description,
		Language:    in.Language,
		Genre:       in.Genre,
		AIToolUsed:  in.AIToolUsed,
		SubmittedAt: now,
		UpdatedAt:   now,
		Username:    user.Username,
	}

	err = s.songRepo.Create(ctx, song)
	if err != nil {
		return nil, fmt.Errorf("failed to create song: %w", err)
	}

	err = s.attachFiles(ctx, user, song, audio, lyrics)
	if err != nil {
		cleanupErr := s.removeSong(ctx, song)
		if cleanupErr != nil {
			slog.Error("failed to roll back song after upload error", "error", cleanupErr, "song_id", song.ID)
		}
		return nil, err
	}

	err = s.userRepo.AdjustSongsUploaded(ctx, user.ID, 1)
	if err != nil {
		slog.Warn("failed to update upload count", "error", err, "user_id", user.ID)
	}

	err = s.emailService.SendSongUploaded(ctx, user, song)
	if err != nil {
		slog.Warn("failed to send upload confirmation", "error", err, "song_id", song.ID)
	}

	slog.Info("song submitted", "song_id", song.ID, "user_id", user.ID, "title", song.Title)
	return song, nil
}

func (s *SongService) attachFiles(ctx context.Context, user *model.User, song *model.Song, audio Upload, lyrics *Upload) error {
	file, err := s.fileService.Upload(ctx, user.ID, model.OwnerTypeSong, song.ID, model.FileTypeAudio, audio)
	if err != nil {
		return fmt.Errorf("failed to store audio: %w", err)
	}
	song.FileSize = humanize.IBytes(uint64(file.Size))

	if lyrics != nil {
		_, err = s.fileService.Upload(ctx, user.ID, model.OwnerTypeSong, song.ID, model.FileTypeLyrics, *lyrics)
		if err != nil {
			return fmt.Errorf("failed to store lyrics: %w", err)
		}
	}
	return nil
}

// Song returns a song with signed file URLs.
func (s *SongService) Song(ctx context.Context, id string) (*model.Song, error) {
	song, err := s.songRepo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.populateFiles(ctx, song)
	return song, nil
}

// OwnedSong returns the song only when user uploaded it. Songs of other
// users are reported as missing.
func (s *SongService) OwnedSong(ctx context.Context, user *model.User, id string) (*model.Song, error) {
	song, err := s.songRepo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if song.UserID != user.ID {
		return nil, repository.ErrSongNotFound
	}
	return song, nil
}

func (s *SongService) populateFiles(ctx context.Context, song *model.Song) {
	audio, err := s.fileService.OwnerFile(ctx, model.OwnerTypeSong, song.ID, model.FileTypeAudio)
	if err == nil {
		song.AudioURL = s.fileService.URL(ctx, audio)
		song.FileSize = humanize.IBytes(uint64(audio.Size))
	}

	lyrics, err := s.fileService.OwnerFile(ctx, model.OwnerTypeSong, song.ID, model.FileTypeLyrics)
	if err == nil {
		song.LyricsURL = s.fileService.URL(ctx, lyrics)
	}
}

// View counts a visit and loads the song page. viewer may be nil.
func (s *SongService) View(ctx context.Context, id string, viewer *model.User) (*SongDetail, error) {
	err := s.songRepo.IncrementViews(ctx, id)
	if err != nil {
		return nil, err
	}

	song, err := s.Song(ctx, id)
	if err != nil {
		return nil, err
	}

	comments, err := s.commentRepo.BySong(ctx, id, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}

	detail := &SongDetail{Song: song, Comments: comments}
	if viewer != nil {
		vote, err := s.voteRepo.ByUserAndSong(ctx, viewer.ID, id)
		if err == nil {
			detail.UserVote = vote
		} else if !errors.Is(err, repository.ErrVoteNotFound) {
			return nil, fmt.Errorf("failed to load vote: %w", err)
		}
	}
	return detail, nil
}

// List returns a page of songs and the total number matching the filter.
func (s *SongService) List(ctx context.Context, filter model.SongFilter) ([]*model.Song, int, error) {
	songs, err := s.songRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list songs: %w", err)
	}

	total, err := s.songRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count songs: %w", err)
	}
	return songs, total, nil
}

// Update edits metadata of a song the user owns. Files cannot be replaced.
func (s *SongService) Update(ctx context.Context, user *model.User, id string, in SongInput) (*model.Song, error) {
	song, err := s.OwnedSong(ctx, user, id)
	if err != nil {
		return nil, err
	}

	in.normalize()
	err = in.validate()
	if err != nil {
		return nil, err
	}

	song.Title = in.Title
	song.Description = in.Description
	song.Language = in.Language
	song.Genre = in.Genre
	song.AIToolUsed = in.AIToolUsed

	err = s.songRepo.Update(ctx, song)
	if err != nil {
		return nil, err
	}
	return song, nil
}

// Delete removes a song the user owns together with its files and sends a
// confirmation. Callers must have verified a song_deletion code first.
func (s *SongService) Delete(ctx context.Context, user *model.User, id string) (*model.Song, error) {
	song, err := s.OwnedSong(ctx, user, id)
	if err != nil {
		return nil, err
	}

	err = s.removeSong(ctx, song)
	if err != nil {
		return nil, err
	}

	err = s.userRepo.AdjustSongsUploaded(ctx, user.ID, -1)
	if err != nil {
		slog.Warn("failed to update upload count", "error", err, "user_id", user.ID)
	}

	err = s.emailService.SendSongDeleted(ctx, user, song.Title)
	if err != nil {
		slog.Warn("failed to send deletion confirmation", "error", err, "song_id", song.ID)
	}

	slog.Info("song deleted", "song_id", song.ID, "user_id", user.ID, "title", song.Title)
	return song, nil
}

func (s *SongService) removeSong(ctx context.Context, song *model.Song) error {
	err := s.fileService.DeleteOwnerFiles(ctx, model.OwnerTypeSong, song.ID)
	if err != nil {
		slog.Warn("failed to delete song files", "error", err, "song_id", song.ID)
	}

	err = s.songRepo.Delete(ctx, song.ID)
	if err != nil {
		return fmt.Errorf("failed to delete song: %w", err)
	}
	return nil
}

// Vote records or replaces the user's rating. created reports whether this
// was the user's first vote on the song.
func (s *SongService) Vote(ctx context.Context, user *model.User, songID string, rating int, comment string) (*model.Vote, bool, error) {
	err := validation.ValidateRating(rating)
	if err != nil {
		return nil, false, err
	}

	song, err := s.songRepo.ByID(ctx, songID)
	if err != nil {
		return nil, false, err
	}
	if song.UserID == user.ID {
		return nil, false, ErrOwnSongVote
	}

	_, err = s.voteRepo.ByUserAndSong(ctx, user.ID, songID)
	created := errors.Is(err, repository.ErrVoteNotFound)
	if err != nil && !created {
		return nil, false, fmt.Errorf("failed to load vote: %w", err)
	}

	vote, err := s.voteRepo.Upsert(ctx, &model.Vote{
		UserID:    user.ID,
		SongID:    songID,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, false, err
	}
	return vote, created, nil
}

func (s *SongService) AddComment(ctx context.Context, user *model.User, songID, content string) (*model.Comment, error) {
	err := validation.ValidateComment(content)
	if err != nil {
		return nil, err
	}

	_, err = s.songRepo.ByID(ctx, songID)
	if err != nil {
		return nil, err
	}

	comment := &model.Comment{
		ID:         uuid.New().String(),
		UserID:     user.ID,
		SongID:     songID,
		Content:    strings.TrimSpace(content),
		IsApproved: true,
		CreatedAt:  time.Now().UTC(),
		Username:   user.Username,
	}

	err = s.commentRepo.Create(ctx, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return comment, nil
}

func (s *SongService) Leaderboard(ctx context.Context) (*Leaderboard, error) {
	artists, err := s.songRepo.TopArtists(ctx, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to rank artists: %w", err)
	}

	topSongs, err := s.songRepo.List(ctx, model.SongFilter{RatedOnly: true, OrderBy: repository.SongSortRating, Limit: 10})
	if err != nil {
		return nil, fmt.Errorf("failed to rank songs: %w", err)
	}

	mostViewed, err := s.songRepo.List(ctx, model.SongFilter{ViewedOnly: true, OrderBy: repository.SongSortViews, Limit: 10})
	if err != nil {
		return nil, fmt.Errorf("failed to rank songs by views: %w", err)
	}

	return &Leaderboard{TopArtists: artists, TopSongs: topSongs, MostViewed: mostViewed}, nil
}

// Dashboard lists the user's own songs and wins.
func (s *SongService) Dashboard(ctx context.Context, user *model.User) (*Dashboard, error) {
	songs, err := s.songRepo.List(ctx, model.SongFilter{UserID: user.ID, Limit: 100})
	if err != nil {
		return nil, fmt.Errorf("failed to list songs: %w", err)
	}

	wins, err := s.winnerRepo.ByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wins: %w", err)
	}

	return &Dashboard{Songs: songs, Wins: wins}, nil
}

func (s *SongService) SetFeatured(ctx context.Context, id string, featured bool) error {
	err := s.songRepo.SetFeatured(ctx, id, featured)
	if err != nil {
		return err
	}

	slog.Info("song featured flag changed", "song_id", id, "featured", featured)
	return nil
}

func (s *SongService) Stats(ctx context.Context) (*model.ContestStats, error) {
	return s.songRepo.Stats(ctx)
}

// Comments returns every comment of a song, approved or not, for moderation.
func (s *SongService) Comments(ctx context.Context, songID string) ([]*model.Comment, error) {
	return s.commentRepo.BySong(ctx, songID, false)
}

func (s *SongService) SetCommentApproved(ctx context.Context, id string, approved bool) error {
	err := s.commentRepo.SetApproved(ctx, id, approved)
	if err != nil {
		return err
	}

	slog.Info("comment moderated", "comment_id", id, "approved", approved)
	return nil
}

func (s *SongService) DeleteComment(ctx context.Context, id string) error {
	return s.commentRepo.Delete(ctx, id)
}
