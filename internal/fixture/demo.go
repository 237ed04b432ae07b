package fixture

import "fmt"

// DemoChannelID is the id of the channel returned by DemoChannel.
const DemoChannelID = "UCexample0000000000000001"

// DemoChannel is a 15-video channel, newest first, mixing every kind of video
// the classifier knows about. Videos 2 and 5 are shorts.
func DemoChannel() Channel {
	videos := make([]Video, 0, 15)
	for i := 1; i <= 15; i++ {
		v := Video{
			ID:            VideoID(i),
			Title:         fmt.Sprintf("Example upload %d", i),
			LengthSeconds: 600 + i*30,
		}
		switch i {
		case 2:
			v.Short = true
			v.LengthSeconds = 45
		case 5:
			v.LengthSeconds = 45
		case 7:
			v.Live = true
			v.Title = "Live: weekly Q&A"
		case 9:
			v.MemberOnly = true
		case 11:
			v.LengthSeconds = 10000
		}
		videos = append(videos, v)
	}
	return Channel{
		Handle:   "ExampleChannel",
		ID:       DemoChannelID,
		Title:    "Example Channel",
		Identity: IdentityOGURL,
		Videos:   videos,
	}
}
