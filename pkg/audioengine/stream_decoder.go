package audioengine

import "github.com/hraban/opus"

// StreamDecoder wraps an Opus decoder for the receiving side of
// StreamEncode's channel of frames.
type StreamDecoder struct {
	dec      *opus.Decoder
	rate     int
	channels int
}

func NewStreamDecoder(rate, channels int) (*StreamDecoder, error) {
	d, err := opus.NewDecoder(rate, channels)
	if err != nil {
		return nil, err
	}
	return &StreamDecoder{dec: d, rate: rate, channels: channels}, nil
}

func (sd *StreamDecoder) DecodeFrame(frame []byte, outPcm []int16) (int, error) {
	return sd.dec.Decode(frame, outPcm)
}

// DecodeAll drains resultChan, decoding every frame in order into one
// interleaved int16 PCM buffer.
func (sd *StreamDecoder) DecodeAll(resultChan <-chan EncoderResult) ([]int16, error) {
	frameSize := sd.rate / 50
	out := make([]int16, frameSize*sd.channels)

	var pcm []int16
	for res := range resultChan {
		if res.Error != nil {
			return nil, res.Error
		}
		n, err := sd.DecodeFrame(res.Frame, out)
		if err != nil {
			return nil, err
		}
		pcm = append(pcm, out[:n*sd.channels]...)
	}
	return pcm, nil
}
