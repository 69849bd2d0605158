package scenario

import (
	"time"

	"github.com/kuitang/bringten-smoke/internal/config"
)

// Element selectors of the BringTen lobby.
const (
	SelCreateTab      = "#create_game_tab"
	SelCreateUsername = "#create_game_username"
	SelCreateRoomName = "#create_game_room_name"
	SelCreateSubmit   = "#create_game_submit"
	SelJoinTab        = "#join_game_tab"
	SelJoinUsername   = "#join_game_username"
	SelRoomButtons    = "tbody button"
)

// QuickGameName names the scenario in logs and reports.
const QuickGameName = "quick-game"

// QuickGameParams is the data the quick-game flow needs.
type QuickGameParams struct {
	HomeURL       string
	TitleText     string
	NoResultsText string
	HostName      string
	RoomName      string
	Joiners       []string
	WaitTimeout   time.Duration
	SettleDelay   time.Duration
}

// ParamsFromConfig copies the scenario data out of the runner configuration.
func ParamsFromConfig(cfg *config.Config) QuickGameParams {
	return QuickGameParams{
		HomeURL:       cfg.HomeURL,
		TitleText:     cfg.TitleText,
		NoResultsText: cfg.NoResultsText,
		HostName:      cfg.HostName,
		RoomName:      cfg.RoomName,
		Joiners:       append([]string(nil), cfg.Joiners...),
		WaitTimeout:   cfg.WaitTimeout,
		SettleDelay:   cfg.SettleDelay,
	}
}

// QuickGame builds the flow: the host opens the lobby, checks the title and
// creates a room, then every joiner opens a new tab and joins the first room
// listed. After the create and after each join the page must not say that
// there are no rooms.
func QuickGame(p QuickGameParams) Scenario {
	steps := []Step{
		NewTab(),
		Navigate(p.HomeURL),
		AssertTitleContains(p.TitleText),

		Pause(p.SettleDelay),
		WaitClickable(SelCreateTab, p.WaitTimeout),
		Click(SelCreateTab),
		Fill(SelCreateUsername, p.HostName),
		Fill(SelCreateRoomName, p.RoomName),
		Click(SelCreateSubmit),
		WaitSettled(),
		AssertContentLacks(p.NoResultsText),
	}

	for _, name := range p.Joiners {
		steps = append(steps,
			NewTab(),
			Navigate(p.HomeURL),
			WaitClickable(SelJoinTab, p.WaitTimeout),
			Click(SelJoinTab),
			Fill(SelJoinUsername, name),
			Pause(p.SettleDelay),
			ClickNth(SelRoomButtons, 0),
			WaitSettled(),
			AssertContentLacks(p.NoResultsText),
		)
	}

	return Scenario{Name: QuickGameName, Steps: steps}
}
